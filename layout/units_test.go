package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back-pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
	for _, mm := range samples {
		pt := mm * MmToPt
		back := pt * PtToMm
		if diff := math.Abs(back-mm); diff > 1e-9 {
			t.Fatalf("mm→pt→mm 往返误差过大: in=%gmm pt=%g back=%g diff=%g", mm, pt, back, diff)
		}
	}
}

// TestLengthToConversions 覆盖 Length 在常见单位上的转换正确性（到 mm/pt）。
func TestLengthToConversions(t *testing.T) {
	// 1 in = 25.4 mm
	in := Length{Value: 1, Unit: UnitIN}
	if got := in.ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("1in 转 mm 期望 25.4，实际 %g", got)
	}
	// 2.54 cm = 25.4 mm
	cm := Length{Value: 2.54, Unit: UnitCM}
	if got := cm.ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("2.54cm 转 mm 期望 25.4，实际 %g", got)
	}
	// 12 pt → mm
	pt := Length{Value: 12, Unit: UnitPT}
	if got := pt.ToMM(); math.Abs(got-12*PtToMm) > 1e-9 {
		t.Fatalf("12pt 转 mm 期望 %g，实际 %g", 12*PtToMm, got)
	}
	// 10 mm → pt
	mm := Length{Value: 10, Unit: UnitMM}
	if got := mm.ToPT(); math.Abs(got-10*MmToPt) > 1e-9 {
		t.Fatalf("10mm 转 pt 期望 %g，实际 %g", 10*MmToPt, got)
	}
}

// TestLineHeightResolve 验证行高解析：倍数相对字体的自然行距，绝对值与字体无关。
func TestLineHeightResolve(t *testing.T) {
	natural := 12 * PtToMm * 1.15
	cases := []struct {
		in   string
		want float64
	}{
		{"1.2x", natural * 1.2},
		{"1.5", natural * 1.5},
		{"18pt", 18 * PtToMm},
		{"6mm", 6},
	}
	for _, tc := range cases {
		spec, ok := ParseLineHeight(tc.in)
		if !ok {
			t.Fatalf("%s 应能解析", tc.in)
		}
		if got := spec.Resolve(natural); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s 解析为 mm 错误: got=%g want=%g", tc.in, got, tc.want)
		}
	}
	if _, ok := ParseLineHeight("-1x"); ok {
		t.Fatalf("负的行高倍数应被拒绝")
	}
	// 未设置时使用自然行距
	if got := (LineHeightSpec{}).Resolve(natural); got != natural {
		t.Fatalf("零值行高应回退到自然行距，实际 %g", got)
	}
}

// TestParseRawLengthStr 覆盖带单位与不带单位的长度解析。
func TestParseRawLengthStr(t *testing.T) {
	cases := map[string]Length{
		"12pt":  {Value: 12, Unit: UnitPT},
		"1.5cm": {Value: 1.5, Unit: UnitCM},
		" 3MM ": {Value: 3, Unit: UnitMM},
		"7":	 {Value: 7, Unit: UnitNone},
		"abc":   {},
	}
	for in, want := range cases {
		if got := ParseRawLengthStr(in); got != want {
			t.Fatalf("%q: got %+v want %+v", in, got, want)
		}
	}
}
