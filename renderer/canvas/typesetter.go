package canvasrenderer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
)

// 用于估算平均字宽的样本。
const avgSample = "The quick brown fox jumps over the lazy dog 0123456789"

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// face 把 canvas 的字形面包装成 layout.Face。canvas 的字号为 pt，返回的宽度与度量为 mm。
type face struct {
	f       *canvas.FontFace
	sizeMM  float64
	metrics layout.FontMetrics
}

func (f *face) TextWidth(s string) float64 {
	if s == "" {
		return 0
	}
	return f.f.TextWidth(s)
}

func (f *face) Metrics() layout.FontMetrics { return f.metrics }

func newFace(cf *canvas.FontFace, sizeMM float64) *face {
	m := cf.Metrics()
	descent := math.Abs(m.Descent)
	lineSpacing := m.LineHeight
	if lineSpacing <= 0 {
		lineSpacing = m.Ascent + descent
	}
	f := &face{f: cf, sizeMM: sizeMM}
	maxW := sizeMM
	for _, s := range []string{"W", "M"} {
		maxW = math.Max(maxW, cf.TextWidth(s))
	}
	f.metrics = layout.FontMetrics{
		Ascent:             m.Ascent,
		Descent:            descent,
		LineSpacing:        lineSpacing,
		UnderlinePosition:  descent / 2,
		UnderlineThickness: math.Max(sizeMM/16, 0.1),
		MaxGlyphWidth:      maxW,
		AvgGlyphWidth:      cf.TextWidth(avgSample) / float64(utf8.RuneCountInString(avgSample)),
	}
	return f
}

// Face 实现 layout.Typesetter。size 为毫米。
func (r *Renderer) Face(font layout.FontResource, size float64) (layout.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("字体 %s 的字号无效: %g", font.Name, size)
	}
	key := fmt.Sprintf("%s|%.4f", fontCacheKey(font), size)
	r.fontMu.Lock()
	if f, ok := r.faces[key]; ok {
		r.fontMu.Unlock()
		return f, nil
	}
	r.fontMu.Unlock()

	cf, err := r.fontFace(font, size, layout.Color{})
	if err != nil {
		return nil, err
	}
	f := newFace(cf, size)

	r.fontMu.Lock()
	r.faces[key] = f
	r.fontMu.Unlock()
	return f, nil
}

// fontFace 按 mm 字号创建带颜色的 canvas 字形面。
func (r *Renderer) fontFace(font layout.FontResource, sizeMM float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(toPt(sizeMM), colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		if !r.allowFallback {
			return nil, canvas.FontRegular, err
		}
		fallback, fbStyle, fbErr := r.fallback(font)
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: fbStyle}
		return fallback, fbStyle, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	if err := family.LoadFont(data, 0, style); err != nil {
		return fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
	}
	return nil
}

func (r *Renderer) loadFontBytes(font layout.FontResource) ([]byte, error) {
	src := font.Src
	if src == "" {
		if font.IsBuiltin || font.Base != "" {
			src = "builtin:" + font.Base
		} else {
			return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
		}
	}
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") || strings.HasPrefix(src, "embed:") {
		name := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:"), "embed:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return fonts.Load(name)
	}
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}

// fallback 优先使用资源声明的 fallback 内置字体，否则退回 regular。
func (r *Renderer) fallback(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	name := "regular"
	if font.Fallback != "" {
		name = font.Fallback
	}
	if fam, ok := r.fallbackFamilies[name]; ok {
		return fam, canvas.FontRegular, nil
	}
	data, err := fonts.Load(name)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily("quire-fallback-" + name)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, canvas.FontRegular, err
	}
	r.fallbackFamilies[name] = family
	return family, canvas.FontRegular, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts["Body"]; ok {
		return font
	}
	for _, font := range fonts {
		return font
	}
	return layout.FontResource{Name: "Body", Base: "regular", IsBuiltin: true}
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s|%s", font.Name, font.Src, font.Base, font.Style)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
