package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/quire/condition"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
	htmlrenderer "github.com/ByLCY/quire/renderer/html"
)

// inputs 允许重复指定 -in。
type inputs []string

func (i *inputs) String() string { return strings.Join(*i, ",") }

func (i *inputs) Set(v string) error {
	*i = append(*i, v)
	return nil
}

// job 是一份文档的输入与输出设置。
type job struct {
	Input   string
	Output  string
	Format  string
	Debug   string
	Data    any
	Options layout.BuildOptions
}

func main() {
	var in inputs
	flag.Var(&in, "in", "DSL 文件路径，可重复指定")
	output := flag.String("out", "output/demo.pdf", "输出路径；多个输入时为输出目录")
	format := flag.String("format", "", "输出格式 pdf|svg|html，默认按 -out 的扩展名推断")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径；多个输入时为目录")
	debugRawUnits := flag.Bool("debug-raw-units", false, "在调试 JSON 中输出 debug.rawUnits 影子字段")
	dataArg := flag.String("data", "", "绑定到 DSL 的 JSON 数据，或以 @ 开头的 JSON 文件路径")
	trace := flag.Bool("trace", false, "向标准错误输出分页决策")
	strict := flag.Bool("strict-missing", false, "找不到目标的条件判为不满足")
	maxPages := flag.Int("max-pages", 0, "单份文档的最大页数（0 为默认值）")
	softBreak := flag.Float64("soft-break", 0, "软换行的最小行宽比例（0 为默认值）")
	flag.Parse()

	if len(in) == 0 {
		in = inputs{"examples/demo.quire"}
	}

	data, err := loadData(*dataArg)
	if err != nil {
		log.Fatalf("读取数据失败: %v", err)
	}

	opts := layout.BuildOptions{
		StrictMissingTargets: *strict,
		MaxPages:             *maxPages,
		SoftBreak:            *softBreak,
		Debug:                layout.DebugOptions{RawUnits: *debugRawUnits},
	}
	if *trace {
		opts.Trace = os.Stderr
	}

	jobs, err := plan(in, *output, *format, *debug, data, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, j := range jobs {
		g.Go(func() error {
			if err := run(j); err != nil {
				return fmt.Errorf("%s: %w", j.Input, err)
			}
			log.Printf("已生成 %s：%s", strings.ToUpper(j.Format), j.Output)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("生成失败: %v", err)
	}
}

// loadData 解析 -data：直接的 JSON 文本，或 @path 指向的 JSON 文件。
func loadData(arg string) (any, error) {
	if arg == "" {
		return nil, nil
	}
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

// plan 为每个输入确定输出路径。单个输入时 -out 是文件，多个输入时 -out 是目录。
func plan(in []string, output, format, debug string, data any, opts layout.BuildOptions) ([]job, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if len(in) > 1 || format == "" {
			format = "pdf"
		}
	}
	switch format {
	case "pdf", "svg", "html":
	default:
		return nil, fmt.Errorf("不支持的输出格式 %q", format)
	}

	jobs := make([]job, 0, len(in))
	for _, path := range in {
		j := job{Input: path, Output: output, Format: format, Debug: debug, Data: data, Options: opts}
		j.Options.Origin = path
		if len(in) > 1 {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			j.Output = filepath.Join(output, base+"."+format)
			if debug != "" {
				j.Debug = filepath.Join(debug, base+".json")
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// run 串联解析、布局与渲染。每份文档使用独立的渲染器与字体缓存。
func run(j job) error {
	file, err := os.Open(j.Input)
	if err != nil {
		return fmt.Errorf("无法打开 DSL 文件 %s: %w", j.Input, err)
	}
	defer file.Close()

	doc, err := dsl.ParseFile(j.Input, file)
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	cr := canvasrenderer.NewRenderer(filepath.Dir(j.Input))
	opts := j.Options
	opts.Typesetter = cr
	opts.Conditions = condition.New()

	result, err := layout.Build(doc, j.Data, opts)
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}

	if j.Debug != "" {
		if err := writeDebug(result, j.Debug); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(j.Output), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	switch j.Format {
	case "svg":
		pages, err := cr.RenderPages(result)
		if err != nil {
			return fmt.Errorf("渲染 SVG 失败: %w", err)
		}
		return writePages(j.Output, pages)
	case "html":
		out, err := htmlrenderer.New().Render(result)
		if err != nil {
			return fmt.Errorf("渲染 HTML 失败: %w", err)
		}
		return writeFile(j.Output, out)
	default:
		out, err := cr.Render(result)
		if err != nil {
			return fmt.Errorf("渲染 PDF 失败: %w", err)
		}
		return writeFile(j.Output, out)
	}
}

// writePages 输出 name-1.svg、name-2.svg ...；只有一页时直接写 name.svg。
func writePages(output string, pages [][]byte) error {
	if len(pages) == 1 {
		return writeFile(output, pages[0])
	}
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)
	for i, p := range pages {
		if err := writeFile(fmt.Sprintf("%s-%d%s", stem, i+1, ext), p); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入文件 %s 失败: %w", path, err)
	}
	return nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if debugPath == "-" {
		return layout.EncodeDebug(os.Stdout, result)
	}
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
