package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func childTracking(t *Tree, id NodeID) []int {
	var out []int
	for _, c := range t.Node(id).Children {
		out = append(out, t.Node(c).Tracking)
	}
	return out
}

func TestTreeKeepsOrdinalsConsistent(t *testing.T) {
	tr := NewTree()
	root := tr.New(KindGroup)
	a, b, c := tr.New(KindSpace), tr.New(KindSpace), tr.New(KindSpace)
	tr.AddChild(root, a)
	tr.AddChild(root, c)
	tr.InsertChild(root, 1, b)
	if diff := cmp.Diff([]NodeID{a, b, c}, tr.Node(root).Children); diff != "" {
		t.Fatalf("插入后子节点顺序不符 (-want +got):\n%s", diff)
	}
	if err := tr.Verify(root); err != nil {
		t.Fatalf("插入后不变式被破坏: %v", err)
	}

	tr.RemoveChild(root, a)
	if tr.Node(a).Parent != NoNode || tr.Node(b).Ordinal != 0 || tr.Node(c).Ordinal != 1 {
		t.Fatalf("移除后序号未更新: b=%d c=%d", tr.Node(b).Ordinal, tr.Node(c).Ordinal)
	}

	// 挂到别处的节点会先从原父节点脱离
	other := tr.New(KindGroup)
	tr.AddChild(other, c)
	if len(tr.Node(root).Children) != 1 || tr.Node(c).Parent != other {
		t.Fatalf("重新挂载后父引用不符")
	}
	if err := tr.Verify(root); err != nil {
		t.Fatalf("%v", err)
	}
	if err := tr.Verify(other); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestDeepCopyIssuesNewTrackingAndCopiesRules(t *testing.T) {
	tr := NewTree()
	root := tr.New(KindGroup)
	tr.Node(root).Rules = &PageBreakRules{NewPage: true, MinLines: 2}
	for i := 0; i < 2; i++ {
		tr.AddChild(root, tr.New(KindText))
	}

	cp := tr.DeepCopy(root)
	if tr.Node(cp).Tracking == tr.Node(root).Tracking {
		t.Fatalf("深拷贝应获得新的 tracking id")
	}
	orig, copied := childTracking(tr, root), childTracking(tr, cp)
	for i := range orig {
		if orig[i] == copied[i] {
			t.Fatalf("子节点 %d 的 tracking id 未更新", i)
		}
	}
	tr.Node(cp).Rules.NewPage = false
	if !tr.Node(root).Rules.NewPage {
		t.Fatalf("修改副本的分页规则影响了原节点")
	}
	if err := tr.Verify(cp); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestShallowCopyKeepsTracking(t *testing.T) {
	tr := NewTree()
	root := tr.New(KindGroup)
	tr.AddChild(root, tr.New(KindSpace))
	tr.Node(root).Rules = &PageBreakRules{KeepWithNext: true}

	cp := tr.ShallowCopy(root)
	n := tr.Node(cp)
	if n.Tracking != tr.Node(root).Tracking || len(n.Children) != 0 || n.SplitAt != 0 {
		t.Fatalf("浅拷贝应沿用 tracking 且不含子节点: %+v", n)
	}
	if n.Rules == tr.Node(root).Rules || !n.Rules.KeepWithNext {
		t.Fatalf("分页规则应按值复制")
	}
}

func TestFindScopes(t *testing.T) {
	tr := NewTree()
	doc := tr.New(KindGroup)
	chapter := tr.New(KindGroup)
	tr.Node(chapter).Chapter = true
	tr.AddChild(doc, chapter)

	inner := tr.New(KindList)
	tr.Node(inner).Name = "findings"
	tr.AddChild(chapter, inner)
	outer := tr.New(KindList)
	tr.Node(outer).Name = "summary"
	tr.AddChild(doc, outer)

	section := tr.New(KindGroup)
	tr.AddChild(chapter, section)
	probe := tr.New(KindText)
	tr.AddChild(section, probe)

	cases := []struct {
		name string
		ctx  FindContext
		want NodeID
	}{
		{"findings", FindContext{Scope: ScopeChapter}, inner},
		{"summary", FindContext{Scope: ScopeChapter}, NoNode},
		{"summary", FindContext{Scope: ScopeDocument}, outer},
		{"findings", FindContext{Scope: ScopeUp, Levels: 1}, NoNode},
		{"findings", FindContext{Scope: ScopeUp, Levels: 2}, inner},
		{"findings", FindContext{Scope: ScopeLocal}, NoNode},
	}
	for _, tc := range cases {
		if got := tr.Find(probe, tc.ctx, KindList, tc.name); got != tc.want {
			t.Fatalf("find %s in %+v: got %d want %d", tc.name, tc.ctx, got, tc.want)
		}
	}
}

func TestVerifyDetectsBadSplitCursor(t *testing.T) {
	tr := NewTree()
	root := tr.New(KindGroup)
	tr.AddChild(root, tr.New(KindSpace))
	tr.Node(root).SplitAt = 5
	if err := tr.Verify(root); err == nil {
		t.Fatalf("越界的拆分游标应被发现")
	}
}
