package layout

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/dsl"
)

// stubTypesetter 是测试用的等宽测量后端：每个字符 2mm，行高 5mm，与字号无关。
// 仅用于测试，避免引入 renderer 造成循环依赖。
type stubTypesetter struct{}

type stubFace struct{}

const stubGlyph = 2.0

func (stubTypesetter) Face(font FontResource, size float64) (Face, error) {
	return stubFace{}, nil
}

func (stubFace) TextWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * stubGlyph
}

func (stubFace) Metrics() FontMetrics {
	return FontMetrics{
		Ascent:             3,
		Descent:            1,
		LineSpacing:        5,
		UnderlinePosition:  -0.5,
		UnderlineThickness: 0.2,
		MaxGlyphWidth:      stubGlyph,
		AvgGlyphWidth:      stubGlyph,
	}
}

func buildDoc(t *testing.T, design string, data any, opts BuildOptions) (*Result, error) {
	t.Helper()
	doc, err := dsl.Parse(strings.NewReader(design))
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	opts.Typesetter = stubTypesetter{}
	opts.Debug.Verify = true
	return Build(doc, data, opts)
}

func mustBuild(t *testing.T, design string, data any, opts BuildOptions) *Result {
	t.Helper()
	res, err := buildDoc(t, design, data, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

// design 把页面内容包进一个最小的设计文件。
func design(page string) string {
	return `design T v1 {
  resources {
    font Body {
      src: "builtin:regular"
    }
  }
  template none {
    text Body { "Nothing to report." }
  }
  page A4 margin 10mm {
` + page + `
  }
}`
}

func boxText(b *Box) string {
	var parts []string
	for _, ln := range b.Lines {
		var sb strings.Builder
		for _, s := range ln.Strokes {
			sb.WriteString(s.Text)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n")
}

// collectText 先序收集所有文本框的内容。
func collectText(b *Box) []string {
	if b == nil {
		return nil
	}
	var out []string
	if b.Kind == "text" {
		out = append(out, boxText(b))
	}
	for _, c := range b.Children {
		out = append(out, collectText(c)...)
	}
	return out
}

func TestBuildInterpolatesContent(t *testing.T) {
	res := mustBuild(t, design(`    text Body { "Hello ${name}" }`), map[string]any{"name": "Ada"}, BuildOptions{})
	if len(res.Pages) != 1 {
		t.Fatalf("期望 1 页，实际 %d", len(res.Pages))
	}
	got := collectText(res.Pages[0].Root)
	if len(got) != 1 || got[0] != "Hello Ada" {
		t.Fatalf("插值结果不符: %q", got)
	}
	if res.Meta.Creator != "Quire" {
		t.Fatalf("默认 creator 应为 Quire，实际 %q", res.Meta.Creator)
	}
}

func TestBuildRejectsAmbiguousPlaceholder(t *testing.T) {
	data := map[string]any{
		"findings": []any{
			map[string]any{"title": "crack"},
			map[string]any{"title": "rust"},
		},
	}
	_, err := buildDoc(t, design(`    text Body { "T: ${findings.title}" }`), data, BuildOptions{})
	if !errors.Is(err, binding.ErrAmbiguous) {
		t.Fatalf("期望 ErrAmbiguous，实际 %v", err)
	}
	var de *DesignError
	if !errors.As(err, &de) || de.Element != "text" {
		t.Fatalf("期望定位到 text 元素，实际 %v", err)
	}

	res := mustBuild(t, design(`    text Body { "T: ${findings[1].title}" }`), data, BuildOptions{})
	if got := collectText(res.Pages[0].Root); len(got) != 1 || got[0] != "T: rust" {
		t.Fatalf("带下标的路径应唯一解析，实际 %q", got)
	}
}

func TestBuildSourceFansOutCopies(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"title": "alpha"},
			map[string]any{"title": "beta"},
			"",
		},
	}
	res := mustBuild(t, design(`    text Body source items { "${title}" }`), data, BuildOptions{})
	root := res.Pages[0].Root
	got := collectText(root)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("期望 alpha/beta 两个副本，实际 %q", got)
	}
	if root.Children[0].Tracking == root.Children[1].Tracking {
		t.Fatalf("副本应有不同的 tracking id")
	}
}

func TestBuildListNumbersItemsAndDropsEmpty(t *testing.T) {
	data := map[string]any{
		"findings": []any{
			map[string]any{"title": "crack"},
			map[string]any{"title": "rust"},
			map[string]any{"title": ""},
		},
	}
	res := mustBuild(t, design(`    list Body source findings numbered start 3 {
      text Body { "${title}" }
    }`), data, BuildOptions{})
	list := res.Pages[0].Root.Children[0]
	if list.Kind != "list" || len(list.Children) != 2 {
		t.Fatalf("期望列表含 2 项，实际 %+v", list)
	}
	for i, want := range []string{"3.", "4."} {
		item := list.Children[i]
		if item.Marker == nil || item.Marker.Strokes[0].Text != want {
			t.Fatalf("第 %d 项编号应为 %s，实际 %+v", i, want, item.Marker)
		}
		first := item.Children[0].Lines[0]
		if item.Marker.Baseline != first.Baseline {
			t.Fatalf("编号应与首行基线对齐: %g vs %g", item.Marker.Baseline, first.Baseline)
		}
	}
}

func TestBuildListWhenEmptyPlaceholder(t *testing.T) {
	res := mustBuild(t, design(`    list Body source findings empty none {
      text Body { "${title}" }
    }`), map[string]any{}, BuildOptions{})
	list := res.Pages[0].Root.Children[0]
	if len(list.Children) != 1 {
		t.Fatalf("空列表应换上一个占位项，实际 %d 项", len(list.Children))
	}
	if list.Children[0].Marker != nil {
		t.Fatalf("占位项不应有编号")
	}
	if got := collectText(list); len(got) != 1 || got[0] != "Nothing to report." {
		t.Fatalf("占位内容不符: %q", got)
	}
}

func TestBuildMergesNestedList(t *testing.T) {
	data := map[string]any{
		"a": []any{map[string]any{"t": "one"}},
		"b": []any{map[string]any{"t": "two"}, map[string]any{"t": "three"}},
	}
	res := mustBuild(t, design(`    list Body numbered {
      list Body source a merge {
        text Body { "${t}" }
      }
      list Body source b merge {
        text Body { "${t}" }
      }
    }`), data, BuildOptions{})
	list := res.Pages[0].Root.Children[0]
	if len(list.Children) != 3 {
		t.Fatalf("merge 后应有 3 项，实际 %d", len(list.Children))
	}
	for i, want := range []string{"1.", "2.", "3."} {
		if m := list.Children[i].Marker; m == nil || m.Strokes[0].Text != want {
			t.Fatalf("第 %d 项编号应为 %s，实际 %+v", i, want, m)
		}
	}
}

func TestBuildStaticConditions(t *testing.T) {
	data := map[string]any{"show": true, "hide": false}
	res := mustBuild(t, design(`    text Body when show { "shown" }
    text Body when hide { "hidden" }
    text Body unless hide { "kept" }`), data, BuildOptions{})
	got := collectText(res.Pages[0].Root)
	if len(got) != 2 || got[0] != "shown" || got[1] != "kept" {
		t.Fatalf("静态条件结果不符: %q", got)
	}
}

func TestBuildCollectsConflicts(t *testing.T) {
	data := map[string]any{"flag": true}
	_, err := buildDoc(t, design(`    text Body when flag unless flag { "a" }
    text Body required unless flag { "b" }`), data, BuildOptions{})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("期望 ErrConflict，实际 %v", err)
	}
	if n := strings.Count(err.Error(), "conflicting conditions"); n < 2 {
		t.Fatalf("冲突应一次性全部报告，实际 %d 处: %v", n, err)
	}
}

func TestBuildReportsBadRuleWithPosition(t *testing.T) {
	_, err := buildDoc(t, design(`    text Body max-position 2 { "x" }`), nil, BuildOptions{})
	if !errors.Is(err, ErrBadRule) {
		t.Fatalf("期望 ErrBadRule，实际 %v", err)
	}
	var de *DesignError
	if !errors.As(err, &de) {
		t.Fatalf("期望 DesignError，实际 %T", err)
	}
	if de.Element != "text" || de.Origin != "11:5" {
		t.Fatalf("错误定位不符: %+v", de)
	}
}

func TestBuildRejectsUnknownElement(t *testing.T) {
	_, err := buildDoc(t, design(`    widget Body { "x" }`), nil, BuildOptions{})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("期望 ErrUnsupportedKind，实际 %v", err)
	}
}

func TestBuildDynamicConditionPrunes(t *testing.T) {
	page := `    list Body id findings source findings {
      text Body { "${title}" }
    }
    text Body dynamic "empty list#findings" { "No findings." }`

	res := mustBuild(t, design(page), map[string]any{}, BuildOptions{})
	if got := collectText(res.Pages[0].Root); len(got) != 1 || got[0] != "No findings." {
		t.Fatalf("列表为空时应保留提示，实际 %q", got)
	}

	data := map[string]any{"findings": []any{map[string]any{"title": "crack"}}}
	res = mustBuild(t, design(page), data, BuildOptions{})
	if got := collectText(res.Pages[0].Root); len(got) != 1 || got[0] != "crack" {
		t.Fatalf("列表非空时提示应被移除，实际 %q", got)
	}
}

func TestBuildHeaderPageNumbers(t *testing.T) {
	rows := make([]any, 60)
	for i := range rows {
		rows[i] = map[string]any{"text": "row"}
	}
	res := mustBuild(t, design(`    header height 15mm {
      text Body { "Page {page} of {pages}" }
    }
    text Body source rows { "${text}" }`), map[string]any{"rows": rows}, BuildOptions{})
	if len(res.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(res.Pages))
	}
	// 页眉 15mm 大于上边距，正文顶部下移到 282mm，每页 54 行
	if got := len(collectText(res.Pages[0].Root)); got != 54 {
		t.Fatalf("第 1 页应有 54 行，实际 %d", got)
	}
	for i, page := range res.Pages {
		if page.Number != i+1 {
			t.Fatalf("页码应为 %d，实际 %d", i+1, page.Number)
		}
		want := []string{"Page 1 of 2", "Page 2 of 2"}[i]
		if got := collectText(page.Header); len(got) != 1 || got[0] != want {
			t.Fatalf("第 %d 页页眉不符: %q", i+1, got)
		}
		if page.HeaderBox.Bottom != 282 || page.Body.Top != 282 {
			t.Fatalf("页眉盒子或正文区域不符: %+v / %+v", page.HeaderBox, page.Body)
		}
	}
}

func TestBuildNewPageAtTopDoesNotLeaveBlankPage(t *testing.T) {
	res := mustBuild(t, design(`    text Body new-page { "first" }
    text Body new-page { "second" }`), nil, BuildOptions{})
	if len(res.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(res.Pages))
	}
	for i, want := range []string{"first", "second"} {
		if got := collectText(res.Pages[i].Root); len(got) != 1 || got[0] != want {
			t.Fatalf("第 %d 页内容不符: %q", i+1, got)
		}
	}
}

func TestBuildTableRepeatsHeader(t *testing.T) {
	rows := make([]any, 70)
	for i := range rows {
		rows[i] = map[string]any{"k": "key", "v": "value"}
	}
	res := mustBuild(t, design(`    table Body columns "30% 70%" header-rows 1 {
      row { cell { "Name" } cell { "Value" } }
      row source rows { cell { "${k}" } cell { "${v}" } }
    }`), map[string]any{"rows": rows}, BuildOptions{})
	if len(res.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(res.Pages))
	}
	for i, page := range res.Pages {
		table := page.Root.Children[0]
		head := table.Children[0]
		if !head.Header || collectText(head)[0] != "Name" {
			t.Fatalf("第 %d 页应以表头开始: %+v", i+1, head)
		}
		if w := head.Children[0].Bounds.Width(); !eq(w, 57) {
			t.Fatalf("首列宽度应为 57mm，实际 %g", w)
		}
	}
	total := 0
	for _, page := range res.Pages {
		total += len(page.Root.Children[0].Children) - 1
	}
	if total != 70 {
		t.Fatalf("数据行不应丢失或重复，实际 %d 行", total)
	}
}

func TestBuildMaxPages(t *testing.T) {
	rows := make([]any, 200)
	for i := range rows {
		rows[i] = "x"
	}
	_, err := buildDoc(t, design(`    text Body source rows { "row" }`), map[string]any{"rows": rows}, BuildOptions{MaxPages: 2})
	if !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("期望 ErrTooManyPages，实际 %v", err)
	}
}

// TestDebugRawUnitsOutput 验证开启 Debug.RawUnits 后输出 debug.rawUnits 与模板位置。
func TestDebugRawUnitsOutput(t *testing.T) {
	design := `design D v1 {
  resources {
    font Body {
      src: "builtin:regular"
    }
    style S1 {
      font: Body
      size: 12pt
      line-height: 1.2x
    }
  }
  page A4 margin 10mm {
    text S1 { "aaaa bbbb" }
    text S1 line-height 6mm { "cccc" }
  }
}`
	res := mustBuild(t, design, nil, BuildOptions{Debug: DebugOptions{RawUnits: true}})
	tb := res.Pages[0].Root.Children[0]
	if tb.Debug == nil || tb.Debug.RawUnits == nil || tb.Debug.RawUnits.LineHeight == nil {
		t.Fatalf("缺少 debug.rawUnits.lineHeight: %+v", tb.Debug)
	}
	if lh := tb.Debug.RawUnits.LineHeight; lh.Kind != "factor" || lh.Factor != 1.2 {
		t.Fatalf("行高应为 1.2 倍，实际 %#v", lh)
	}
	if fs := tb.Debug.RawUnits.FontSize; fs == nil || fs.Unit != "pt" || fs.Value != 12 {
		t.Fatalf("字号应为 12pt，实际 %#v", fs)
	}
	if tb.Debug.Origin != "13:5" {
		t.Fatalf("模板位置不符: %q", tb.Debug.Origin)
	}
	lh := res.Pages[0].Root.Children[1].Debug.RawUnits.LineHeight
	if lh.Kind != "absolute" || lh.Unit != "mm" || lh.Value != 6 {
		t.Fatalf("行高应为 6mm 绝对值，实际 %#v", lh)
	}
}

// TestResolveMarginVariants 验证 margin 参数支持 1、2、3、4+ 个值的语义。
func TestResolveMarginVariants(t *testing.T) {
	get := func(spec string) Margin {
		res := mustBuild(t, "design T v1 { page "+spec+" { text { \"x\" } } }", nil, BuildOptions{})
		return res.Pages[0].Margin
	}
	cases := []struct {
		spec string
		want Margin
	}{
		{"A4 portrait margin 10mm", Margin{Top: 10, Right: 10, Bottom: 10, Left: 10}},
		{"A4 portrait margin 10mm 5mm", Margin{Top: 10, Right: 5, Bottom: 10, Left: 5}},
		{"A4 portrait margin 12mm 8mm 6mm", Margin{Top: 12, Right: 8, Bottom: 6, Left: 0}},
		{"A4 portrait margin 1cm 5mm 2cm 3mm", Margin{Top: 10, Right: 5, Bottom: 20, Left: 3}},
		{"A4 portrait margin 1mm 2mm 3mm 4mm 999mm", Margin{Top: 1, Right: 2, Bottom: 3, Left: 4}},
	}
	for _, tc := range cases {
		if got := get(tc.spec); !eqMargin(got, tc.want) {
			t.Fatalf("%s: got %+v want %+v", tc.spec, got, tc.want)
		}
	}
}

func TestResolvePageSizeLandscape(t *testing.T) {
	res := mustBuild(t, `design T v1 { page A4 landscape margin 10mm { text { "x" } } }`, nil, BuildOptions{})
	if p := res.Pages[0]; p.Width != 297 || p.Height != 210 {
		t.Fatalf("横向 A4 应为 297x210，实际 %gx%g", p.Width, p.Height)
	}
	if _, err := buildDoc(t, `design T v1 { page B9 { text { "x" } } }`, nil, BuildOptions{}); err == nil {
		t.Fatalf("未知纸张尺寸应报错")
	}
}

func eqMargin(a, b Margin) bool {
	return eq(a.Top, b.Top) && eq(a.Right, b.Right) && eq(a.Bottom, b.Bottom) && eq(a.Left, b.Left)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func eq(a, b float64) bool { return abs(a-b) < 1e-6 }
