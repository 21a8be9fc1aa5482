package layout

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseDynamic(t *testing.T) {
	cases := []struct {
		expr string
		want DynamicCondition
	}{
		{"not-empty list#findings @chapter", DynamicCondition{
			Predicate: PredNotEmpty, Target: KindList, Name: "findings",
			Context: FindContext{Scope: ScopeChapter},
		}},
		{"items>=2 table#rows @up:2", DynamicCondition{
			Predicate: PredItemsAtLeast, Count: 2, Target: KindTable, Name: "rows",
			Context: FindContext{Scope: ScopeUp, Levels: 2},
		}},
		{"photos<=0 photos#gallery", DynamicCondition{
			Predicate: PredPhotosAtMost, Target: KindPhotoTable, Name: "gallery",
			Context: FindContext{Scope: ScopeDocument},
		}},
	}
	for _, tc := range cases {
		got, err := ParseDynamic(tc.expr)
		if err != nil {
			t.Fatalf("ParseDynamic(%q): %v", tc.expr, err)
		}
		if diff := cmp.Diff(tc.want, got, cmpopts.IgnoreFields(DynamicCondition{}, "Expr")); diff != "" {
			t.Fatalf("ParseDynamic(%q) (-want +got):\n%s", tc.expr, diff)
		}
	}
}

func TestParseDynamicErrors(t *testing.T) {
	for _, expr := range []string{"empty", "sometimes list#a", "items>=x list#a", "empty list", "empty list#a @nowhere"} {
		if _, err := ParseDynamic(expr); !errors.Is(err, ErrBadRule) {
			t.Fatalf("ParseDynamic(%q) 应返回 ErrBadRule，实际 %v", expr, err)
		}
	}
	if _, err := ParseDynamic("empty widget#a"); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("未知种类应返回 ErrUnsupportedKind，实际 %v", err)
	}
}

// namedGroup 创建一个带一段文字、带动态条件的具名分组。
func namedGroup(t *testing.T, e *engine, parent NodeID, name, dynamic string) NodeID {
	t.Helper()
	id := e.tree.New(KindGroup)
	n := e.tree.Node(id)
	n.Name = name
	if dynamic != "" {
		cond, err := ParseDynamic(dynamic)
		if err != nil {
			t.Fatalf("%v", err)
		}
		n.Dynamic = []DynamicCondition{cond}
	}
	e.tree.AddChild(parent, id)
	addText(t, e, id, name)
	return id
}

func TestDynamicMutualReferenceTerminates(t *testing.T) {
	e := newTestEngine(t)
	root := testPage(e, Rect{Right: 100, Top: 100})
	a := namedGroup(t, e, root, "a", "not-empty group#b")
	b := namedGroup(t, e, root, "b", "not-empty group#a")
	if err := e.applyDynamic(root); err != nil {
		t.Fatalf("applyDynamic 失败: %v", err)
	}
	if e.tree.Node(a).pruned || e.tree.Node(b).pruned {
		t.Fatalf("互相引用的非空分组都应保留")
	}
	if e.tree.Node(a).dynState != dynApplied || e.tree.Node(b).dynState != dynApplied {
		t.Fatalf("求值结束后状态应为 applied")
	}
}

func TestDynamicPrunesOnEmptyTarget(t *testing.T) {
	e := newTestEngine(t)
	root := testPage(e, Rect{Right: 100, Top: 100})
	list := e.tree.New(KindList)
	e.tree.Node(list).Name = "findings"
	e.tree.AddChild(root, list)
	summary := namedGroup(t, e, root, "summary", "not-empty list#findings")
	none := namedGroup(t, e, root, "none", "empty list#findings")

	if err := e.applyDynamic(root); err != nil {
		t.Fatalf("%v", err)
	}
	if !e.tree.Node(summary).pruned || len(e.tree.Node(summary).Children) != 0 {
		t.Fatalf("目标列表为空时 not-empty 分组应被清空")
	}
	if e.tree.Node(none).pruned {
		t.Fatalf("目标列表为空时 empty 分组应保留")
	}
}

func TestDynamicItemCount(t *testing.T) {
	e := newTestEngine(t)
	root := testPage(e, Rect{Right: 100, Top: 100})
	list := e.tree.New(KindList)
	e.tree.Node(list).Name = "findings"
	e.tree.AddChild(root, list)
	for i := 0; i < 2; i++ {
		item := e.tree.New(KindListItem)
		e.tree.AddChild(list, item)
		addText(t, e, item, "x")
	}
	two := namedGroup(t, e, root, "two", "items>=2 list#findings")
	three := namedGroup(t, e, root, "three", "items>=3 list#findings")
	if err := e.applyDynamic(root); err != nil {
		t.Fatalf("%v", err)
	}
	if e.tree.Node(two).pruned || !e.tree.Node(three).pruned {
		t.Fatalf("items>=2 应保留、items>=3 应清空")
	}
}

func TestDynamicMissingTarget(t *testing.T) {
	for _, strict := range []bool{false, true} {
		e := newTestEngine(t)
		e.opts.StrictMissingTargets = strict
		root := testPage(e, Rect{Right: 100, Top: 100})
		g := namedGroup(t, e, root, "g", "not-empty list#nothing")
		if err := e.applyDynamic(root); err != nil {
			t.Fatalf("%v", err)
		}
		if e.tree.Node(g).pruned != strict {
			t.Fatalf("strict=%v 时找不到目标的条件处理不符", strict)
		}
	}
}
