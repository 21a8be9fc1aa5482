package layout

import (
	"testing"
)

func flow(t *testing.T, verses []Verse, width, paragraphSpacing float64) []Line {
	t.Helper()
	base := &Format{FontName: "Body", Size: 11 * PtToMm}
	lines, err := FlowText(stubTypesetter{}, verses, base, width, width*defaultSoftBreak, paragraphSpacing)
	if err != nil {
		t.Fatalf("FlowText 失败: %v", err)
	}
	return lines
}

func lineTexts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = ln.Text()
	}
	return out
}

func TestFlowParagraphSpacing(t *testing.T) {
	verses := appendLiteral(nil, "first paragraph\n\nsecond paragraph", nil)
	lines := flow(t, verses, 100, 3)
	if len(lines) != 2 {
		t.Fatalf("期望 2 行，实际 %d: %q", len(lines), lineTexts(lines))
	}
	if lines[0].GapBefore != 0 || lines[1].GapBefore != 3 {
		t.Fatalf("段前距不符: %g, %g", lines[0].GapBefore, lines[1].GapBefore)
	}
	if lines[0].Text() != "first paragraph" || lines[1].Text() != "second paragraph" {
		t.Fatalf("行内容不符: %q", lineTexts(lines))
	}
	if lines[0].Height != 5 || lines[0].Baseline != 3.5 {
		t.Fatalf("行高/基线不符: %g / %g", lines[0].Height, lines[0].Baseline)
	}
}

func TestFlowFitsWithoutBreak(t *testing.T) {
	lines := flow(t, []Verse{{Text: "short"}}, 100, 0)
	if len(lines) != 1 || len(lines[0].Strokes) != 1 || lines[0].Strokes[0].Hyphen {
		t.Fatalf("短文本应为单行且不断行: %+v", lines)
	}
	if br := findBreak(stubFace{}, []rune("short"), 100, 82, true, false); !br.none {
		t.Fatalf("放得下时应返回 none: %+v", br)
	}
}

func TestFlowBreaksAtSpace(t *testing.T) {
	// 宽 20mm，每字 2mm，一行 10 个字符
	lines := flow(t, []Verse{{Text: "aaaa bbbb cccc"}}, 20, 0)
	want := []string{"aaaa bbbb", "cccc"}
	if got := lineTexts(lines); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFlowHyphenatesLongWord(t *testing.T) {
	lines := flow(t, []Verse{{Text: "aaaaaaaaaaaaaa"}}, 20, 0)
	got := lineTexts(lines)
	if len(got) != 2 || got[0] != "aaaaaaaaa-" || got[1] != "aaaaa" {
		t.Fatalf("长单词应在词内断开并加连字符: %q", got)
	}
	if !lines[0].Strokes[0].Hyphen || lines[0].Width > 20 {
		t.Fatalf("首行应带连字符且不超宽: %+v", lines[0])
	}
}

func TestFlowSoftBreakTooEarly(t *testing.T) {
	// 唯一的空格断点只占行宽 30%，低于软断点比例，改为在词内硬断
	lines := flow(t, []Verse{{Text: "aaa bbbbbbbbbbbb"}}, 20, 0)
	got := lineTexts(lines)
	if len(got) != 2 || got[0] != "aaa bbbbb-" || got[1] != "bbbbbbb" {
		t.Fatalf("got %q", got)
	}
}

func TestFlowForcesOneCharacter(t *testing.T) {
	// 可用宽度小于一个字符时每行强制放一个字符，不会产生空行
	lines := flow(t, []Verse{{Text: "abc"}}, 1, 0)
	got := lineTexts(lines)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %q", got)
	}
	for _, ln := range lines {
		if len(ln.Strokes) == 0 {
			t.Fatalf("每行至少要有一段文字")
		}
	}
}

func TestFlowContinuesAfterFormatChange(t *testing.T) {
	bold := &Format{FontName: "Bold", Size: 11 * PtToMm}
	verses := []Verse{{Text: "aaaa "}, {Text: "bbbb", Format: bold}, {Text: " cc"}}
	lines := flow(t, verses, 100, 0)
	if len(lines) != 1 || len(lines[0].Strokes) != 3 {
		t.Fatalf("不同格式应在同一行内成为多段: %+v", lines)
	}
	s := lines[0].Strokes
	if s[1].Format != bold || s[1].X != 10 || s[2].X != 18 {
		t.Fatalf("段位置不符: %+v", s)
	}
}

func TestFitCount(t *testing.T) {
	rest := []rune("abcdefghij")
	cases := []struct {
		avail float64
		want  int
	}{
		{0, 0}, {1.9, 0}, {2, 1}, {7, 3}, {20, 10}, {100, 10},
	}
	for _, tc := range cases {
		if got := fitCount(stubFace{}, rest, tc.avail); got != tc.want {
			t.Fatalf("fitCount(%g) = %d, want %d", tc.avail, got, tc.want)
		}
	}
}
