package condition

import (
	"errors"
	"testing"
	"time"

	"github.com/ByLCY/quire/binding"
)

func sampleData() map[string]any {
	return map[string]any{
		"title": "Inspection",
		"draft": false,
		"findings": []any{
			map[string]any{"title": "Rust", "severity": 3.0, "photos": []any{"a.jpg", "b.jpg"}},
			map[string]any{"title": "Leak", "severity": 1.0, "photos": []any{}},
		},
	}
}

func finding(t *testing.T, i int) binding.Ref {
	t.Helper()
	refs, err := binding.Resolve(binding.NewRoot(sampleData()), "findings")
	if err != nil || len(refs) <= i {
		t.Fatalf("Resolve findings: %v", err)
	}
	return refs[i]
}

func TestEvalExpressions(t *testing.T) {
	ev := New()
	cases := []struct {
		expr string
		idx  int
		want bool
	}{
		{"item.photos.length >= 2", 0, true},
		{"item.photos.length >= 2", 1, false},
		{"item.severity > 2 && data.title == 'Inspection'", 0, true},
		{"index === 1", 1, true},
		{"!data.draft", 0, true},
		{"has('photos')", 1, false},
		{"has('$.title')", 1, true},
		{"", 1, true},
	}
	for _, tc := range cases {
		got, err := ev.Eval(tc.expr, finding(t, tc.idx))
		if err != nil {
			t.Fatalf("Eval(%q) returned error: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) on findings[%d] = %v, want %v", tc.expr, tc.idx, got, tc.want)
		}
	}
}

func TestEvalPathUsesContentTruthiness(t *testing.T) {
	ev := New()
	// 空数组在 JavaScript 中为真，但作为内容路径视为空
	if ok, err := ev.Eval("photos", finding(t, 1)); err != nil || ok {
		t.Fatalf("empty photos should not satisfy: %v %v", ok, err)
	}
	if ok, err := ev.Eval("photos", finding(t, 0)); err != nil || !ok {
		t.Fatalf("photos should satisfy: %v %v", ok, err)
	}
	if ok, err := ev.Eval("$.draft", finding(t, 0)); err != nil || ok {
		t.Fatalf("false flag should not satisfy: %v %v", ok, err)
	}
}

func TestIsPath(t *testing.T) {
	for expr, want := range map[string]bool{
		"selected":          true,
		"$.meta.draft":      true,
		"findings[0].title": true,
		"has-photos":        true,
		"$":                 true,
		"true":              false,
		"a && b":            false,
		"item.count > 1":    false,
		"has('x')":          false,
	} {
		if got := IsPath(expr); got != want {
			t.Fatalf("IsPath(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEvalReportsSyntaxError(t *testing.T) {
	ev := New()
	if _, err := ev.Eval("item.title ==", finding(t, 0)); err == nil {
		t.Fatalf("expected syntax error")
	}
	// 编译失败不应影响后续求值
	if ok, err := ev.Eval("item.title == 'Rust'", finding(t, 0)); err != nil || !ok {
		t.Fatalf("evaluator unusable after error: %v %v", ok, err)
	}
}

func TestEvalTimesOut(t *testing.T) {
	ev := New()
	ev.Timeout = 20 * time.Millisecond
	_, err := ev.Eval("while (true) {}", finding(t, 0))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if ok, err := ev.Eval("index === 0", finding(t, 0)); err != nil || !ok {
		t.Fatalf("evaluator unusable after interrupt: %v %v", ok, err)
	}
}
