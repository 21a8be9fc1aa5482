package layout

import "math"

// epsilon 用于坐标比较，吸收浮点累加误差（单位 mm）。
const epsilon = 1e-6

// Rect 描述一个矩形区域，坐标原点在页面左下角，Y 轴向上（单位：mm）。
// 不变式：Bottom <= Top。
type Rect struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Top - r.Bottom }

// IsZeroHeight reports whether the rect occupies no vertical space.
func (r Rect) IsZeroHeight() bool { return r.Height() <= epsilon }

// Inset 返回按 Margin 收缩后的矩形。
func (r Rect) Inset(m Margin) Rect {
	out := Rect{
		Left:   r.Left + m.Left,
		Right:  r.Right - m.Right,
		Top:    r.Top - m.Top,
		Bottom: r.Bottom + m.Bottom,
	}
	if out.Right < out.Left {
		out.Right = out.Left
	}
	if out.Bottom > out.Top {
		out.Bottom = out.Top
	}
	return out
}

// Shift 在竖直方向平移矩形。
func (r Rect) Shift(dy float64) Rect {
	r.Top += dy
	r.Bottom += dy
	return r
}

// WithHeight 保持 Top 不变，按给定高度重新计算 Bottom。
func (r Rect) WithHeight(h float64) Rect {
	r.Bottom = r.Top - math.Max(h, 0)
	return r
}

// Fraction 返回 y 在区域中距顶部的位置比例（0 = 顶部，1 = 底部）。
func (r Rect) Fraction(y float64) float64 {
	h := r.Height()
	if h <= 0 {
		return 0
	}
	return (r.Top - y) / h
}
