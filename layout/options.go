package layout

import (
	"io"

	"github.com/ByLCY/quire/binding"
)

// 默认软换行位置：可用宽度的 82%。
const defaultSoftBreak = 0.82

// BuildOptions 配置布局阶段所需的依赖，例如测量后端与条件求值器。
type BuildOptions struct {
	Typesetter Typesetter
	Conditions ConditionEvaluator
	// SoftBreak 是软换行的最小行宽比例（0..1），超出该比例之前找不到断点时在词内硬断并加连字符。
	SoftBreak float64
	// StrictMissingTargets 为 true 时，找不到目标的条件判为不满足（默认视为满足）。
	StrictMissingTargets bool
	// MaxPages 是分页的兜底上限。
	MaxPages int
	// Trace 非空时输出分页决策日志。
	Trace io.Writer
	// Origin 是设计文件名，用于错误定位。
	Origin string
	Debug  DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
	Verify   bool // 每成一页校验一次树结构，违反时 panic
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.SoftBreak <= 0 || o.SoftBreak > 1 {
		o.SoftBreak = defaultSoftBreak
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10000
	}
	return o
}

// Typesetter 是测量后端：根据字体与字号返回可测量文本宽度的字形面。
// 字号与所有返回值均为毫米（mm）。
type Typesetter interface {
	Face(font FontResource, size float64) (Face, error)
}

// Face 测量一段文本的前进宽度，并提供行度量。
type Face interface {
	TextWidth(s string) float64
	Metrics() FontMetrics
}

// FontMetrics 是字体在给定字号下的度量（mm）。
type FontMetrics struct {
	Ascent             float64
	Descent            float64
	LineSpacing        float64
	UnderlinePosition  float64
	UnderlineThickness float64
	MaxGlyphWidth      float64
	AvgGlyphWidth      float64
}

// ConditionEvaluator 对静态条件表达式求值，scope 为当前内容对象。
type ConditionEvaluator interface {
	Eval(expr string, scope binding.Ref) (bool, error)
}
