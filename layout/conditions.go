package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate 是动态条件对目标节点的判断。
type Predicate int

const (
	PredEmpty Predicate = iota
	PredNotEmpty
	PredItemsAtLeast
	PredItemsAtMost
	PredPhotosAtLeast
	PredPhotosAtMost
)

// DynamicCondition 在树建好之后求值：通过 find 找到控制节点，再根据其内容决定本节点是否保留。
type DynamicCondition struct {
	Predicate Predicate
	Count     int
	Target    Kind
	Name      string
	Context   FindContext
	Expr      string
}

// dynState 保证每个节点的动态条件在一次排版中最多求值一次，也用来截断互相引用造成的递归。
type dynState uint8

const (
	dynNotApplied dynState = iota
	dynApplying
	dynApplied
)

// ParseDynamic 解析形如 "not-empty list#findings @chapter"、"items>=2 table#rows @up:2" 的条件。
func ParseDynamic(expr string) (DynamicCondition, error) {
	fields := strings.Fields(expr)
	cond := DynamicCondition{Expr: expr, Context: FindContext{Scope: ScopeDocument}}
	if len(fields) < 2 || len(fields) > 3 {
		return cond, fmt.Errorf("%w: 动态条件 %q 应为 <谓词> <种类>#<id> [@范围]", ErrBadRule, expr)
	}

	pred := fields[0]
	switch {
	case pred == "empty":
		cond.Predicate = PredEmpty
	case pred == "not-empty":
		cond.Predicate = PredNotEmpty
	default:
		var (
			name string
			op   string
		)
		for _, candidate := range []string{">=", "<="} {
			if i := strings.Index(pred, candidate); i > 0 {
				name, op = pred[:i], candidate
				n, err := strconv.Atoi(pred[i+2:])
				if err != nil || n < 0 {
					return cond, fmt.Errorf("%w: 动态条件 %q 的数量无效", ErrBadRule, expr)
				}
				cond.Count = n
				break
			}
		}
		switch name + op {
		case "items>=":
			cond.Predicate = PredItemsAtLeast
		case "items<=":
			cond.Predicate = PredItemsAtMost
		case "photos>=":
			cond.Predicate = PredPhotosAtLeast
		case "photos<=":
			cond.Predicate = PredPhotosAtMost
		default:
			return cond, fmt.Errorf("%w: 未知的动态条件谓词 %q", ErrBadRule, pred)
		}
	}

	kind, name, ok := strings.Cut(fields[1], "#")
	if !ok || name == "" {
		return cond, fmt.Errorf("%w: 动态条件目标 %q 应为 <种类>#<id>", ErrBadRule, fields[1])
	}
	k, ok := ParseKind(kind)
	if !ok {
		return cond, fmt.Errorf("%w: 动态条件目标种类 %q", ErrUnsupportedKind, kind)
	}
	cond.Target = k
	cond.Name = name

	if len(fields) == 3 {
		ctx, err := parseScope(fields[2])
		if err != nil {
			return cond, fmt.Errorf("%w: %v", ErrBadRule, err)
		}
		cond.Context = ctx
	}
	return cond, nil
}

func parseScope(v string) (FindContext, error) {
	v = strings.TrimPrefix(v, "@")
	name, levels, hasLevels := strings.Cut(v, ":")
	switch name {
	case "local":
		return FindContext{Scope: ScopeLocal}, nil
	case "chapter":
		return FindContext{Scope: ScopeChapter}, nil
	case "document":
		return FindContext{Scope: ScopeDocument}, nil
	case "up":
		n := 1
		if hasLevels {
			var err error
			if n, err = strconv.Atoi(levels); err != nil || n < 0 {
				return FindContext{}, fmt.Errorf("范围 @up 的层数 %q 无效", levels)
			}
		}
		return FindContext{Scope: ScopeUp, Levels: n}, nil
	}
	return FindContext{}, fmt.Errorf("未知的查找范围 @%s", v)
}

// applyDynamic 按后序对子树求值动态条件：子孙先于自身，保证外层判断使用的是已经确定的内部状态。
func (e *engine) applyDynamic(id NodeID) error {
	n := e.tree.Node(id)
	for _, c := range append([]NodeID(nil), n.Children...) {
		if err := e.applyDynamic(c); err != nil {
			return err
		}
	}
	return e.applyOwnDynamic(id)
}

func (e *engine) applyOwnDynamic(id NodeID) error {
	n := e.tree.Node(id)
	if n.dynState != dynNotApplied {
		return nil
	}
	n.dynState = dynApplying
	defer func() { n.dynState = dynApplied }()

	if n.pruned || !n.StaticOK {
		return nil
	}
	for _, cond := range n.Dynamic {
		ok, err := e.dynamicMet(id, cond)
		if err != nil {
			return designErr(n, err)
		}
		if !ok {
			e.tracef("prune %v: %s", n, cond.Expr)
			e.prune(id)
			return nil
		}
	}
	return nil
}

func (e *engine) dynamicMet(id NodeID, cond DynamicCondition) (bool, error) {
	target := e.tree.Find(id, cond.Context, cond.Target, cond.Name)
	if target == NoNode {
		if e.opts.StrictMissingTargets {
			return false, nil
		}
		return true, nil
	}
	if target != id {
		// 目标自身的条件（以及其子孙）需要先确定；正在求值中的节点直接使用当前状态。
		if err := e.applyDynamic(target); err != nil {
			return false, err
		}
	}
	switch cond.Predicate {
	case PredEmpty:
		return e.isEmpty(target), nil
	case PredNotEmpty:
		return !e.isEmpty(target), nil
	case PredItemsAtLeast:
		return e.itemCount(target) >= cond.Count, nil
	case PredItemsAtMost:
		return e.itemCount(target) <= cond.Count, nil
	case PredPhotosAtLeast:
		return e.photoCount(target) >= cond.Count, nil
	case PredPhotosAtMost:
		return e.photoCount(target) <= cond.Count, nil
	}
	return false, fmt.Errorf("%w: 未处理的谓词 %d", ErrBadRule, cond.Predicate)
}

// prune 清空节点内容；节点本身留在树中，方便其它条件通过 find 读到它已为空。
func (e *engine) prune(id NodeID) {
	n := e.tree.Node(id)
	n.pruned = true
	e.tree.Clear(id)
	n.SplitAt = n.units()
}

// isEmpty 判断节点在排版前是否有可见内容。
func (e *engine) isEmpty(id NodeID) bool {
	n := e.tree.Node(id)
	if n.pruned || !n.StaticOK {
		return true
	}
	switch n.Kind {
	case KindText:
		for _, v := range n.Text.Verses {
			if v.Kind == VerseText && strings.TrimSpace(v.Text) != "" {
				return false
			}
		}
		for _, ln := range n.Text.Lines {
			if ln.hasContent() {
				return false
			}
		}
		return true
	case KindPicture:
		return n.Picture.Src == ""
	case KindSpace, KindLine:
		return true
	case KindList:
		return e.itemCount(id) == 0
	case KindTable:
		return e.itemCount(id) == 0
	case KindListItem:
		if n.Item.Placeholder {
			return true
		}
	}
	for _, c := range n.Children {
		if !e.isEmpty(c) {
			return false
		}
	}
	return true
}

// itemCount 统计列表项（不含占位项）、表格的非表头行或其它容器的非空子节点。
func (e *engine) itemCount(id NodeID) int {
	n := e.tree.Node(id)
	if n.pruned || !n.StaticOK {
		return 0
	}
	count := 0
	for _, c := range n.Children {
		cn := e.tree.Node(c)
		switch {
		case n.Kind == KindList:
			if cn.Kind == KindListItem && !cn.Item.Placeholder && !cn.pruned {
				count++
			}
		case n.Kind == KindTable:
			if cn.Row != nil && !cn.Row.Header && !e.isEmpty(c) {
				count++
			}
		case n.Kind == KindPhotoTable:
			count += e.photoCount(c)
		default:
			if !e.isEmpty(c) {
				count++
			}
		}
	}
	return count
}

func (e *engine) photoCount(id NodeID) int {
	count := 0
	e.tree.Walk(id, func(n *Node) bool {
		if n.pruned || !n.StaticOK {
			return false
		}
		if n.Kind == KindPhoto {
			count++
			return false
		}
		return true
	})
	return count
}
