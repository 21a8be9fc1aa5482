package layout

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// VerseKind 区分文本片段与段落/换行标记。
type VerseKind int

const (
	VerseText VerseKind = iota
	VerseParagraph
	VerseLineBreak
)

// Format 是一段文本的格式。
type Format struct {
	Font      FontResource
	FontName  string
	Size      float64 // mm
	Color     Color
	Underline bool
	Leading   LineHeightSpec
}

// Verse 是格式化文本脚本中的一个片段。加载后不再修改。
type Verse struct {
	Kind   VerseKind
	Text   string
	Format *Format // 为空时使用节点样式
}

// Stroke 是行内的一段同格式文本，X 相对行的左端。
type Stroke struct {
	Text   string  `json:"text"`
	Format *Format `json:"-"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Hyphen bool    `json:"hyphen,omitempty"`
}

// Line 是排好的一行。Bounds 为页面绝对坐标，Baseline 为基线距行顶的距离。
type Line struct {
	Strokes   []Stroke
	Bounds    Rect
	Baseline  float64
	Ascent    float64
	Descent   float64
	Height    float64
	Width     float64
	GapBefore float64
	Paragraph bool
}

func (l Line) clone() Line {
	l.Strokes = append([]Stroke(nil), l.Strokes...)
	return l
}

func (l Line) hasContent() bool {
	for _, s := range l.Strokes {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// Text 返回整行文本。
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Strokes {
		b.WriteString(s.Text)
	}
	return b.String()
}

// lineBreak 描述一次断行查找的结果。
type lineBreak struct {
	none   bool // 剩余文本整体放得下，无需断行
	at     int  // 行内容为 rest[:at]；0 表示当前行一个字也放不下，需要另起一行重试
	hyphen bool
}

var openQuotes = map[rune]bool{'"': true, '\'': true, '“': true, '‘': true, '«': true, '„': true, '(': true, '[': true}

// canStartLine 判断 rest[k] 能否作为新行的起点：空白，或前面是空白的开引号。
func canStartLine(rest []rune, k int) bool {
	if k <= 0 || k >= len(rest) {
		return false
	}
	r := rest[k]
	if unicode.IsSpace(r) {
		return true
	}
	return openQuotes[r] && unicode.IsSpace(rest[k-1])
}

func runeWidth(face Face, rs []rune) float64 {
	if len(rs) == 0 {
		return 0
	}
	return face.TextWidth(string(rs))
}

// fitCount 返回 rest 的最长前缀长度，使其宽度不超过 available。
// 先用最大/平均字宽夹出上下界，再二分，最后 ±1 字符微调；逐字扫描在长文本上是平方复杂度。
func fitCount(face Face, rest []rune, available float64) int {
	total := len(rest)
	if total == 0 || available <= 0 {
		return 0
	}
	m := face.Metrics()
	fits := func(n int) bool { return runeWidth(face, rest[:n]) <= available+epsilon }

	lo := 0
	if m.MaxGlyphWidth > 0 {
		lo = int(available / m.MaxGlyphWidth)
	}
	lo = min(lo, total)
	for lo > 0 && !fits(lo) {
		lo /= 2
	}
	if lo == total {
		return total
	}

	hi := total
	if m.AvgGlyphWidth > 0 {
		hi = int(math.Ceil(available/m.AvgGlyphWidth)) + 1
	}
	hi = max(min(hi, total), lo+1)
	for hi < total && fits(hi) {
		lo = hi
		hi = min(hi*2, total)
	}
	if fits(hi) {
		return hi
	}

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}

	for lo < total && fits(lo+1) {
		lo++
	}
	for lo > 0 && !fits(lo) {
		lo--
	}
	return lo
}

// findBreak 在 rest 中为当前行寻找断点。
// available 是当前行剩余宽度，softAvail 是软断点至少要达到的宽度（同样相对当前位置）。
func findBreak(face Face, rest []rune, available, softAvail float64, lineEmpty, prevSpace bool) lineBreak {
	if runeWidth(face, rest) <= available+epsilon {
		return lineBreak{none: true}
	}
	n := fitCount(face, rest, available)
	if n == 0 {
		if !lineEmpty {
			return lineBreak{at: 0}
		}
		return lineBreak{at: 1}
	}

	for k := n; k > 0; k-- {
		if !canStartLine(rest, k) {
			continue
		}
		if runeWidth(face, rest[:k]) >= softAvail-epsilon {
			return lineBreak{at: k}
		}
		break
	}

	if !lineEmpty && (prevSpace || unicode.IsSpace(rest[0])) {
		return lineBreak{at: 0}
	}

	at := n
	natural := unicode.IsSpace(rest[at-1]) || canStartLine(rest, at)
	if natural {
		return lineBreak{at: at}
	}
	hyphen := runeWidth(face, []rune{'-'})
	for at > 1 && runeWidth(face, rest[:at])+hyphen > available+epsilon {
		at--
	}
	return lineBreak{at: at, hyphen: true}
}

// flower 维护一次文本流排时的当前行与水平位置。
type flower struct {
	ts        Typesetter
	base      *Format
	width     float64
	soft      float64
	faces     map[*Format]Face
	lines     []Line
	pos       float64
	prevSpace bool
}

func (f *flower) face(fm *Format) (Face, error) {
	if face, ok := f.faces[fm]; ok {
		return face, nil
	}
	face, err := f.ts.Face(fm.Font, fm.Size)
	if err != nil {
		return nil, err
	}
	f.faces[fm] = face
	return face, nil
}

func (f *flower) newLine(paragraph bool) {
	f.lines = append(f.lines, Line{Paragraph: paragraph})
	f.pos = 0
	f.prevSpace = false
}

func (f *flower) addStroke(fm *Format, face Face, text string, hyphen bool) {
	if hyphen {
		text += "-"
	}
	w := runeWidth(face, []rune(text))
	ln := &f.lines[len(f.lines)-1]
	ln.Strokes = append(ln.Strokes, Stroke{Text: text, Format: fm, X: f.pos, Width: w, Hyphen: hyphen})
	f.pos += w
	if text != "" {
		r := []rune(text)
		f.prevSpace = unicode.IsSpace(r[len(r)-1])
	}
}

func (f *flower) flowVerse(v Verse) error {
	fm := v.Format
	if fm == nil {
		fm = f.base
	}
	face, err := f.face(fm)
	if err != nil {
		return err
	}
	runes := []rune(norm.NFC.String(v.Text))
	if len(runes) == 0 {
		f.addStroke(fm, face, "", false)
		return nil
	}
	i := 0
	for i < len(runes) {
		if f.pos == 0 {
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			if i == len(runes) {
				break
			}
		}
		rest := runes[i:]
		br := findBreak(face, rest, f.width-f.pos, f.soft-f.pos, f.pos == 0, f.prevSpace)
		switch {
		case br.none:
			f.addStroke(fm, face, string(rest), false)
			i = len(runes)
		case br.at == 0:
			f.newLine(false)
		default:
			text := strings.TrimRightFunc(string(rest[:br.at]), unicode.IsSpace)
			f.addStroke(fm, face, text, br.hyphen)
			f.newLine(false)
			i += br.at
		}
	}
	return nil
}

// FlowText 将格式化文本脚本排成行。width 是可用宽度，softLimit 是软断点宽度，
// paragraphSpacing 会加在除首行外每个段落首行之前。
func FlowText(ts Typesetter, verses []Verse, base *Format, width, softLimit, paragraphSpacing float64) ([]Line, error) {
	f := &flower{
		ts:    ts,
		base:  base,
		width: width,
		soft:  softLimit,
		faces: map[*Format]Face{},
	}
	f.newLine(false)
	for _, v := range verses {
		switch v.Kind {
		case VerseParagraph:
			f.newLine(true)
		case VerseLineBreak:
			f.newLine(false)
		default:
			if err := f.flowVerse(v); err != nil {
				return nil, err
			}
		}
	}

	lines := f.lines[:0]
	for _, ln := range f.lines {
		if ln.hasContent() || ln.Paragraph {
			lines = append(lines, ln)
		}
	}
	for i := range lines {
		if err := f.measure(&lines[i]); err != nil {
			return nil, err
		}
		switch {
		case i == 0:
			lines[i].GapBefore = 0
		case lines[i].Paragraph:
			lines[i].GapBefore = paragraphSpacing
		}
	}
	return lines, nil
}

// measure 根据行内各段的最大上升/下降与行距计算行高与基线。
func (f *flower) measure(ln *Line) error {
	formats := make([]*Format, 0, len(ln.Strokes))
	for _, s := range ln.Strokes {
		formats = append(formats, s.Format)
	}
	if len(formats) == 0 {
		formats = append(formats, f.base)
	}
	for _, fm := range formats {
		face, err := f.face(fm)
		if err != nil {
			return err
		}
		m := face.Metrics()
		ln.Ascent = math.Max(ln.Ascent, m.Ascent)
		ln.Descent = math.Max(ln.Descent, m.Descent)
		ln.Height = math.Max(ln.Height, fm.Leading.Resolve(m.LineSpacing))
	}
	ln.Height = math.Max(ln.Height, ln.Ascent+ln.Descent)
	ln.Baseline = ln.Ascent + (ln.Height-ln.Ascent-ln.Descent)/2
	ln.Width = 0
	for _, s := range ln.Strokes {
		ln.Width = math.Max(ln.Width, s.X+s.Width)
	}
	return nil
}
