package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolvedStyle 是展开 extends 链之后的有效样式，解析完成后只读，可被多个节点共享。
type ResolvedStyle struct {
	Name             string
	FontName         string
	Font             FontResource
	Size             float64 // mm
	SizeRaw          Length
	Leading          LineHeightSpec
	LeadingRaw       string
	Color            Color
	ParagraphSpacing float64
	Spacing          float64 // 与前一个兄弟之间的距离
	Padding          Margin
	Align            string
	Indent           float64
	Underline        bool
	Border           *Color
	Background       *Color
	format           *Format
}

// Format 返回该样式对应的文本格式（共享同一实例，供 Stroke 引用）。
func (s *ResolvedStyle) Format() *Format {
	if s.format == nil {
		s.format = &Format{
			Font:      s.Font,
			FontName:  s.FontName,
			Size:      s.Size,
			Color:     s.Color,
			Underline: s.Underline,
			Leading:   s.Leading,
		}
	}
	return s.format
}

var defaultStyle = &ResolvedStyle{Name: "default", Size: 11 * PtToMm, Color: Color{R: 30, G: 30, B: 30}}

// styleCache 以样式名缓存解析结果，相同样式的节点共享同一份 ResolvedStyle。
type styleCache struct {
	res    ResourceSet
	byName map[string]*ResolvedStyle
}

func newStyleCache(res ResourceSet) *styleCache {
	return &styleCache{res: res, byName: map[string]*ResolvedStyle{}}
}

// resolve 返回 name + inline 属性的有效样式。没有内联样式属性时复用缓存。
func (c *styleCache) resolve(name string, inline map[string]string) (*ResolvedStyle, error) {
	if name != "" {
		if _, ok := c.res.Styles[name]; !ok {
			if _, isFont := c.res.Fonts[name]; !isFont {
				return nil, fmt.Errorf("%w: style %s 未定义", ErrMissingStyle, name)
			}
		}
	}
	styleKeys := false
	for k := range inline {
		if styleProps[k] {
			styleKeys = true
			break
		}
	}
	if !styleKeys {
		if s, ok := c.byName[name]; ok {
			return s, nil
		}
	}
	attrs := mergeStyleAttributes(name, inline, c.res.Styles)
	s, err := computeStyle(name, attrs, c.res)
	if err != nil {
		return nil, err
	}
	if !styleKeys {
		c.byName[name] = s
	}
	return s, nil
}

// styleProps 列出属于样式（而不是元素）的属性。
var styleProps = map[string]bool{
	"font": true, "size": true, "color": true, "line-spacing": true, "line-height": true,
	"paragraph-spacing": true, "spacing": true, "padding": true, "align": true,
	"indent": true, "underline": true, "border": true, "background": true,
}

func computeStyle(name string, attrs map[string]string, res ResourceSet) (*ResolvedStyle, error) {
	s := &ResolvedStyle{Name: name}
	fontName := attrs["font"]
	if fontName == "" {
		if _, ok := res.Fonts[name]; ok {
			fontName = name
		}
	}
	if fontName == "" {
		fontName = "Body"
	}
	font, err := resolveFontResource(fontName, res)
	if err != nil {
		return nil, err
	}
	s.FontName = fontName
	s.Font = font

	s.SizeRaw = ParseRawLengthStr(attrs["size"])
	if s.SizeRaw.Unit == UnitNone && s.SizeRaw.Value > 0 {
		s.SizeRaw.Unit = UnitPT
	}
	if s.SizeRaw.Value <= 0 {
		s.SizeRaw = Length{Value: 11, Unit: UnitPT}
	}
	s.Size = s.SizeRaw.ToMM()

	lh := attrs["line-spacing"]
	if lh == "" {
		lh = attrs["line-height"]
	}
	s.LeadingRaw = lh
	if spec, ok := ParseLineHeight(lh); ok {
		s.Leading = spec
	} else {
		s.Leading = LineHeightSpec{Kind: LineHeightFactor, Factor: 1}
	}

	s.Color = resolveColor(attrs["color"], res)
	s.ParagraphSpacing = parseLength(attrs["paragraph-spacing"])
	s.Spacing = parseLength(attrs["spacing"])
	s.Padding = parseBoxLengths(attrs["padding"])
	s.Indent = parseLength(attrs["indent"])
	s.Align = normalizeAlign(attrs["align"])
	s.Underline = parseBool(attrs["underline"])
	if v := attrs["border"]; v != "" && !strings.EqualFold(v, "none") {
		c := resolveColor(v, res)
		s.Border = &c
	}
	if v := attrs["background"]; v != "" {
		c := resolveColor(v, res)
		s.Background = &c
	}
	s.Format()
	return s, nil
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	case "justify":
		return "justify"
	default:
		return ""
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// parseBoxLengths 采用与页边距相同的 1~4 值语义。
func parseBoxLengths(v string) Margin {
	fields := strings.Fields(v)
	vals := make([]float64, 0, 4)
	for _, f := range fields {
		if len(vals) == 4 {
			break
		}
		vals = append(vals, parseLength(f))
	}
	return marginFromValues(vals, Margin{})
}

func marginFromValues(vals []float64, def Margin) Margin {
	switch len(vals) {
	case 1:
		v := vals[0]
		return Margin{Top: v, Right: v, Bottom: v, Left: v}
	case 2:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
	case 3:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: 0}
	case 4:
		return Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	}
	return def
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("%w: style %s 未定义", ErrMissingStyle, name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	for _, font := range res.Fonts {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("%w: 字体 %s 未定义，且没有可用的默认字体", ErrMissingFont, name)
}

func resolveColor(value string, res ResourceSet) Color {
	if value == "" {
		return Color{R: 30, G: 30, B: 30}
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return Color{R: 30, G: 30, B: 30}
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(string(value[0]), 2)),
			G: mustHex(strings.Repeat(string(value[1]), 2)),
			B: mustHex(strings.Repeat(string(value[2]), 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

// parseLength 将带单位的长度转换为 mm；无单位按 mm 处理。
func parseLength(value string) float64 {
	if value == "" {
		return 0
	}
	return ParseRawLengthStr(value).ToMM()
}

func parseDimension(value string, reference float64) float64 {
	if value == "" {
		return 0
	}
	if strings.HasSuffix(value, "%") {
		num := strings.TrimSuffix(value, "%")
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return reference * f / 100
		}
		return 0
	}
	return parseLength(value)
}

func trimUnit(value string) string {
	for _, suffix := range []string{"pt", "mm", "cm", "in", "%"} {
		if strings.HasSuffix(value, suffix) {
			return strings.TrimSuffix(value, suffix)
		}
	}
	return value
}
