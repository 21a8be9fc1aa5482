package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
)

const defaultBorderWidth = 0.2

// Renderer 使用 github.com/tdewolff/canvas 绘制布局结果，同时充当排版阶段的测量后端。
// 同一个 Renderer 的字体缓存只应服务一份文档。
type Renderer struct {
	baseDir       string
	allowFallback bool

	// 注入的资源
	fontBlobs  map[string][]byte
	imageBlobs map[string][]byte

	fontMu           sync.Mutex
	fontFamilies     map[string]*fontFamilyEntry
	fallbackFamilies map[string]*canvas.FontFamily
	faces            map[string]*face

	imageMu sync.Mutex
	images  map[string]image.Image
}

var (
	_ renderer.Renderer     = (*Renderer)(nil)
	_ renderer.PageRenderer = (*Renderer)(nil)
	_ layout.Typesetter     = (*Renderer)(nil)
)

// Options 配置 canvas 渲染器。
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // 通过 builtin:<name> 访问的注入字体
	Images  map[string]Resource // 通过 builtin:<name> 访问的注入图片
	// Fallback 为 true 时，字体加载失败改用 fallback 声明的内置字体而不是报错。
	Fallback bool
}

// Resource 可以直接提供字节，也可以提供文件路径。
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer 创建以 baseDir 解析相对资源路径的渲染器。
func NewRenderer(baseDir string) *Renderer {
	return NewRendererWithOptions(Options{BaseDir: baseDir, Fallback: true})
}

// NewRendererWithOptions 创建注入了资源的渲染器。
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:          opts.BaseDir,
		allowFallback:    opts.Fallback,
		fontBlobs:        ingest(opts.Fonts),
		imageBlobs:       ingest(opts.Images),
		fontFamilies:     map[string]*fontFamilyEntry{},
		fallbackFamilies: map[string]*canvas.FontFamily{},
		faces:            map[string]*face{},
		images:           map[string]image.Image{},
	}
	return r
}

func ingest(in map[string]Resource) map[string][]byte {
	out := map[string][]byte{}
	for name, res := range in {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			out[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			// 读取失败留到真正使用时报错
			data, _ := os.ReadFile(res.Path)
			if len(data) > 0 {
				out[name] = data
			}
		}
	}
	return out
}

// Render 将结果渲染为 PDF。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if err := checkResult(result); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	r.applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		if err := r.drawPage(ctx, page, result.Resources); err != nil {
			return nil, fmt.Errorf("第 %d 页: %w", page.Number, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPages 将每一页渲染为独立的 SVG 文档。
func (r *Renderer) RenderPages(result *layout.Result) ([][]byte, error) {
	if err := checkResult(result); err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(result.Pages))
	for _, page := range result.Pages {
		var buf bytes.Buffer
		writer := svg.New(&buf, page.Width, page.Height, nil)
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		if err := r.drawPage(ctx, page, result.Resources); err != nil {
			return nil, fmt.Errorf("第 %d 页: %w", page.Number, err)
		}
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}

func checkResult(result *layout.Result) error {
	if result == nil {
		return fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return fmt.Errorf("缺少可渲染的页面")
	}
	return nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// drawPage 依次绘制页眉、正文与页脚。布局坐标原点在左下角，与 canvas 默认坐标系一致。
func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page, resources layout.ResourceSet) error {
	for _, b := range []*layout.Box{page.Header, page.Root, page.Footer} {
		if err := r.drawBox(ctx, b, resources); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawBox(ctx *canvas.Context, b *layout.Box, resources layout.ResourceSet) error {
	if b == nil {
		return nil
	}
	bounds := b.Bounds
	if b.Background != nil && !bounds.IsZeroHeight() {
		ctx.SetFillColor(colorFromLayout(*b.Background))
		ctx.SetStrokeColor(color.RGBA{})
		ctx.DrawPath(bounds.Left, bounds.Bottom, canvas.Rectangle(bounds.Width(), bounds.Height()))
	}
	if b.Border != nil && !bounds.IsZeroHeight() {
		ctx.SetFillColor(color.RGBA{})
		ctx.SetStrokeColor(colorFromLayout(*b.Border))
		ctx.SetStrokeWidth(defaultBorderWidth)
		ctx.DrawPath(bounds.Left, bounds.Bottom, canvas.Rectangle(bounds.Width(), bounds.Height()))
	}

	for _, ln := range b.Lines {
		if err := r.drawTextLine(ctx, ln, resources.Fonts); err != nil {
			return err
		}
	}
	if b.Marker != nil {
		if err := r.drawTextLine(ctx, *b.Marker, resources.Fonts); err != nil {
			return err
		}
	}
	if b.Image != nil {
		if err := r.drawImage(ctx, b.Image, bounds); err != nil {
			return err
		}
	}
	if b.Rule != nil {
		r.drawRule(ctx, *b.Rule)
	}

	for _, c := range b.Children {
		if err := r.drawBox(ctx, c, resources); err != nil {
			return err
		}
	}
	return nil
}

// drawTextLine 在基线上逐段绘制文字，X 已是绝对坐标。
func (r *Renderer) drawTextLine(ctx *canvas.Context, ln layout.TextLine, fonts map[string]layout.FontResource) error {
	for _, s := range ln.Strokes {
		size := s.FontSize
		if size <= 0 {
			size = 11 * layout.PtToMm
		}
		face, err := r.fontFace(resolveFontResource(s.Font, fonts), size, s.Color)
		if err != nil {
			return err
		}
		ctx.DrawText(s.X, ln.Baseline, canvas.NewTextLine(face, s.Text, canvas.Left))

		if s.Underline {
			m := newFace(face, size).Metrics()
			y := ln.Baseline - m.UnderlinePosition
			r.drawRule(ctx, layout.Line2D{X1: s.X, Y1: y, X2: s.X + s.Width, Y2: y, Color: s.Color, Width: m.UnderlineThickness})
		}
	}
	return nil
}

func (r *Renderer) drawImage(ctx *canvas.Context, box *layout.ImageBox, bounds layout.Rect) error {
	if box.Path == "" {
		return nil
	}
	img, err := r.loadImage(box.Path)
	if err != nil {
		return err
	}
	p := fitImage(img, box.Fit, bounds.Left, bounds.Bottom, bounds.Width(), bounds.Height())
	ctx.DrawImage(p.X, p.Y, withOpacity(p.Img, box.Opacity), canvas.DPMM(p.DPMM))
	return nil
}

// drawRule 绘制一条直线（毫米单位）。
func (r *Renderer) drawRule(ctx *canvas.Context, ln layout.Line2D) {
	w := ln.Width
	if w <= 0 {
		w = defaultBorderWidth
	}
	ctx.SetFillColor(color.RGBA{})
	ctx.SetStrokeColor(colorFromLayout(ln.Color))
	ctx.SetStrokeWidth(w)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
	ctx.DrawPath(ln.X1, ln.Y1, p)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
