// Package htmlrenderer 把布局结果输出为一份 HTML：每页一个绝对定位的 section，单位保持毫米。
package htmlrenderer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
)

const pageGap = 8.0 // 页与页之间的间距（mm）

// Renderer 输出 HTML。
type Renderer struct {
	// Title 覆盖文档元信息中的标题。
	Title string
}

var _ renderer.Renderer = (*Renderer)(nil)

// New 创建 HTML 渲染器。
func New() *Renderer { return &Renderer{} }

// Render 将全部页面写进一个 HTML 文档。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	title := r.Title
	if title == "" {
		title = result.Meta.Title
	}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root := element(atom.Html, nil)
	doc.AppendChild(root)

	head := element(atom.Head, nil)
	root.AppendChild(head)
	head.AppendChild(element(atom.Meta, map[string]string{"charset": "utf-8"}))
	t := element(atom.Title, nil)
	t.AppendChild(text(title))
	head.AppendChild(t)
	if result.Meta.Author != "" {
		head.AppendChild(element(atom.Meta, map[string]string{"name": "author", "content": result.Meta.Author}))
	}
	styleNode := element(atom.Style, nil)
	styleNode.AppendChild(text(baseCSS))
	head.AppendChild(styleNode)

	body := element(atom.Body, nil)
	root.AppendChild(body)
	for _, page := range result.Pages {
		body.AppendChild(r.page(page, result.Resources))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("写入 HTML 失败: %w", err)
	}
	return buf.Bytes(), nil
}

const baseCSS = `body{margin:0;background:#ddd}
section.page{position:relative;margin:0 auto;background:#fff;overflow:hidden}
section.page *{position:absolute;box-sizing:border-box;margin:0}
span.stroke{white-space:pre}`

func (r *Renderer) page(page layout.Page, res layout.ResourceSet) *html.Node {
	sec := element(atom.Section, map[string]string{
		"class":       "page",
		"data-number": strconv.Itoa(page.Number),
		"style":       css("width", mm(page.Width), "height", mm(page.Height), "margin-bottom", mm(pageGap)),
	})
	p := &pager{height: page.Height, fonts: res.Fonts}
	for _, b := range []*layout.Box{page.Header, page.Root, page.Footer} {
		p.box(sec, b)
	}
	return sec
}

// pager 把 y 向上的布局坐标换算为 CSS 的 top。
type pager struct {
	height float64
	fonts  map[string]layout.FontResource
}

func (p *pager) top(y float64) string { return mm(p.height - y) }

func (p *pager) box(parent *html.Node, b *layout.Box) {
	if b == nil {
		return
	}
	bounds := b.Bounds
	if b.Background != nil || b.Border != nil {
		props := []string{
			"left", mm(bounds.Left), "top", p.top(bounds.Top),
			"width", mm(bounds.Width()), "height", mm(bounds.Height()),
		}
		if b.Background != nil {
			props = append(props, "background", hex(*b.Background))
		}
		if b.Border != nil {
			props = append(props, "border", "0.2mm solid "+hex(*b.Border))
		}
		parent.AppendChild(element(atom.Div, map[string]string{
			"class": "box " + b.Kind,
			"style": css(props...),
		}))
	}

	for _, ln := range b.Lines {
		p.line(parent, ln)
	}
	if b.Marker != nil {
		p.line(parent, *b.Marker)
	}
	if img := b.Image; img != nil && img.Path != "" {
		fit := img.Fit
		if fit == "" {
			fit = "contain"
		}
		if fit == "stretch" {
			fit = "fill"
		}
		parent.AppendChild(element(atom.Img, map[string]string{
			"src": img.Path,
			"alt": b.Name,
			"style": css(
				"left", mm(bounds.Left), "top", p.top(bounds.Top),
				"width", mm(bounds.Width()), "height", mm(bounds.Height()),
				"object-fit", fit, "opacity", num(img.Opacity),
			),
		}))
	}
	if rule := b.Rule; rule != nil {
		w := rule.Width
		if w <= 0 {
			w = 0.2
		}
		parent.AppendChild(element(atom.Hr, map[string]string{
			"style": css(
				"left", mm(rule.X1), "top", p.top(rule.Y1+w/2),
				"width", mm(rule.X2-rule.X1), "height", "0",
				"border", "none", "border-top", mm(w)+" solid "+hex(rule.Color),
			),
		}))
	}

	for _, c := range b.Children {
		p.box(parent, c)
	}
}

// line 为每一段文字生成一个 span，行高取整行高度，使基线与版面一致。
func (p *pager) line(parent *html.Node, ln layout.TextLine) {
	for _, s := range ln.Strokes {
		props := []string{
			"left", mm(s.X), "top", p.top(ln.Bounds.Top),
			"height", mm(ln.Bounds.Height()), "line-height", mm(ln.Bounds.Height()),
			"font-size", mm(s.FontSize), "color", hex(s.Color),
		}
		props = append(props, p.fontProps(s.Font)...)
		if s.Underline {
			props = append(props, "text-decoration", "underline")
		}
		span := element(atom.Span, map[string]string{"class": "stroke", "style": css(props...)})
		span.AppendChild(text(s.Text))
		parent.AppendChild(span)
	}
}

func (p *pager) fontProps(name string) []string {
	font, ok := p.fonts[name]
	if !ok {
		return []string{"font-family", "sans-serif"}
	}
	base := strings.ToLower(font.Base + " " + font.Style)
	family := "sans-serif"
	switch {
	case strings.Contains(base, "mono"):
		family = "monospace"
	case strings.Contains(base, "serif"):
		family = "serif"
	}
	if font.Family != "" && !font.IsBuiltin {
		family = strconv.Quote(font.Family) + "," + family
	}
	props := []string{"font-family", family}
	if strings.Contains(base, "bold") {
		props = append(props, "font-weight", "bold")
	}
	if strings.Contains(base, "italic") {
		props = append(props, "font-style", "italic")
	}
	return props
}

func element(a atom.Atom, attrs map[string]string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, key := range []string{"class", "data-number", "charset", "name", "content", "src", "alt", "style"} {
		if v, ok := attrs[key]; ok {
			n.Attr = append(n.Attr, html.Attribute{Key: key, Val: v})
		}
	}
	return n
}

func text(s string) *html.Node { return &html.Node{Type: html.TextNode, Data: s} }

// css 把成对的属性名与值拼成内联样式。
func css(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(kv[i])
		b.WriteByte(':')
		b.WriteString(kv[i+1])
		b.WriteByte(';')
	}
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func mm(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) + "mm" }

func hex(c layout.Color) string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }
