// Package condition 用 goja 对模板中的 when / unless / filter 表达式求值。
//
// 纯路径表达式（如 "selected"、"$.meta.draft"、"photos[0]"）按内容数据的真值判断，
// 与未配置求值器时的行为一致；其它表达式作为 JavaScript 执行，可使用：
//
//	item   当前内容对象
//	data   整份内容数据
//	index  当前对象在数组中的位置，不来自数组时为 -1
//	has(p) 路径 p 相对当前对象是否为真值
package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/ByLCY/quire/binding"
)

// ErrTimeout 表示表达式执行超过了 Evaluator.Timeout。
var ErrTimeout = errors.New("condition: expression timed out")

const defaultTimeout = 100 * time.Millisecond

var pathPattern = regexp.MustCompile(`^(\$|\$\.)?[A-Za-z_][\w-]*(\[\d*\])?(\.[A-Za-z_][\w-]*(\[\d*\])?)*$`)

var literals = map[string]bool{"true": true, "false": true, "null": true, "undefined": true, "NaN": true}

// Evaluator 实现 layout.ConditionEvaluator。同一个 Evaluator 可以被多份文档复用，
// 内部的 goja 运行时由互斥锁保护，编译结果按表达式缓存。
type Evaluator struct {
	// Timeout 限制单个表达式的执行时间，0 表示使用默认值。
	Timeout time.Duration

	mu       sync.Mutex
	vm       *goja.Runtime
	programs map[string]*goja.Program
}

// New 创建一个求值器。
func New() *Evaluator {
	return &Evaluator{
		vm:       goja.New(),
		programs: map[string]*goja.Program{},
	}
}

// IsPath 判断表达式是否为纯内容路径。
func IsPath(expr string) bool {
	expr = strings.TrimSpace(expr)
	return expr == "$" || (pathPattern.MatchString(expr) && !literals[expr])
}

// Eval 对 expr 求值并按 JavaScript 的真值规则转换为 bool。
func (ev *Evaluator) Eval(expr string, scope binding.Ref) (ok bool, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	if IsPath(expr) {
		return binding.Satisfied(scope, expr), nil
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("condition %q: panic: %v", expr, p)
		}
	}()

	program, err := ev.compile(expr)
	if err != nil {
		return false, err
	}

	vm := ev.vm
	if err := ev.bind(vm, scope); err != nil {
		return false, fmt.Errorf("condition %q: %w", expr, err)
	}

	timeout := ev.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	timer := time.AfterFunc(timeout, func() { vm.Interrupt(ErrTimeout) })
	value, err := vm.RunProgram(program)
	timer.Stop()
	vm.ClearInterrupt()
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return false, fmt.Errorf("condition %q: %w", expr, ErrTimeout)
		}
		return false, fmt.Errorf("condition %q: %w", expr, err)
	}
	if value == nil {
		return false, nil
	}
	return value.ToBoolean(), nil
}

func (ev *Evaluator) compile(expr string) (*goja.Program, error) {
	if p, ok := ev.programs[expr]; ok {
		return p, nil
	}
	p, err := goja.Compile("condition", expr, false)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", expr, err)
	}
	ev.programs[expr] = p
	return p, nil
}

func (ev *Evaluator) bind(vm *goja.Runtime, scope binding.Ref) error {
	if err := vm.Set("item", scope.Value); err != nil {
		return err
	}
	if err := vm.Set("data", scope.Root); err != nil {
		return err
	}
	if err := vm.Set("index", scope.Index); err != nil {
		return err
	}
	return vm.Set("has", func(path string) bool {
		return binding.Satisfied(scope, path)
	})
}
