package layout

import (
	"fmt"
)

// Tree 是节点的 arena：所有节点按句柄存放，子节点列表持有句柄，Parent 只是非拥有的回指。
// 一个 Tree 只服务于一份文档的一次排版，不做并发保护。
type Tree struct {
	nodes    []*Node
	tracking int
}

// NewTree 创建空的节点 arena。
func NewTree() *Tree {
	return &Tree{}
}

// Node 返回句柄对应的节点。
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("layout: 非法节点句柄 %d", id))
	}
	return t.nodes[id]
}

// Len 返回 arena 中分配过的节点数量（包含已脱离的节点）。
func (t *Tree) Len() int { return len(t.nodes) }

// New 分配一个新节点并赋予新的 tracking id。
func (t *Tree) New(kind Kind) NodeID {
	n := &Node{
		ID:       NodeID(len(t.nodes)),
		Kind:     kind,
		Parent:   NoNode,
		StaticOK: true,
	}
	newPayload(n)
	t.tracking++
	n.Tracking = t.tracking
	t.nodes = append(t.nodes, n)
	n.SplitAt = n.units()
	return n.ID
}

func (t *Tree) children(id NodeID) []NodeID { return t.Node(id).Children }

// AddChild 将 child 追加到 parent 末尾；child 若已挂在别处会先脱离。
func (t *Tree) AddChild(parent, child NodeID) {
	t.InsertChild(parent, len(t.Node(parent).Children), child)
}

// InsertChild 将 child 插入到 parent 的 at 位置，并重排后续兄弟的序号。
func (t *Tree) InsertChild(parent NodeID, at int, child NodeID) {
	if parent == child {
		panic("layout: 节点不能成为自己的子节点")
	}
	t.detach(child)
	p := t.Node(parent)
	if at < 0 || at > len(p.Children) {
		panic(fmt.Sprintf("layout: 插入位置 %d 越界（共 %d 个子节点）", at, len(p.Children)))
	}
	p.Children = append(p.Children, NoNode)
	copy(p.Children[at+1:], p.Children[at:])
	p.Children[at] = child
	c := t.Node(child)
	c.Parent = parent
	t.renumber(parent, at)
}

// RemoveChild 将 child 从 parent 中移除，child 的 Parent 置空。
func (t *Tree) RemoveChild(parent, child NodeID) {
	c := t.Node(child)
	if c.Parent != parent {
		panic(fmt.Sprintf("layout: %v 不是 %v 的子节点", c, t.Node(parent)))
	}
	t.detach(child)
}

func (t *Tree) detach(child NodeID) {
	c := t.Node(child)
	if c.Parent == NoNode {
		return
	}
	p := t.Node(c.Parent)
	at := c.Ordinal
	if at >= len(p.Children) || p.Children[at] != child {
		panic(fmt.Sprintf("layout: %v 的序号 %d 与父节点不一致", c, at))
	}
	p.Children = append(p.Children[:at], p.Children[at+1:]...)
	t.renumber(c.Parent, at)
	c.Parent = NoNode
	c.Ordinal = 0
}

func (t *Tree) renumber(parent NodeID, from int) {
	p := t.Node(parent)
	for i := from; i < len(p.Children); i++ {
		t.Node(p.Children[i]).Ordinal = i
	}
}

// Clear 移除 id 的全部子节点。
func (t *Tree) Clear(id NodeID) {
	n := t.Node(id)
	for _, c := range n.Children {
		cn := t.Node(c)
		cn.Parent = NoNode
		cn.Ordinal = 0
	}
	n.Children = nil
}

// ShallowCopy 复制节点自身的字段（不含子节点），用于生成拆分后的另一半。
// 副本沿用原节点的 tracking id，分页规则按值复制。
func (t *Tree) ShallowCopy(id NodeID) NodeID {
	src := t.Node(id)
	dst := &Node{
		ID:           NodeID(len(t.nodes)),
		Kind:         src.Kind,
		Name:         src.Name,
		Bounds:       src.Bounds,
		Parent:       NoNode,
		GapBefore:    src.GapBefore,
		Style:        src.Style,
		Rules:        src.Rules.clone(),
		Tracking:     src.Tracking,
		Origin:       src.Origin,
		Content:      src.Content,
		Source:       src.Source,
		When:         src.When,
		Unless:       src.Unless,
		StaticOK:     src.StaticOK,
		FromString:   src.FromString,
		Required:     src.Required,
		Continuation: src.Continuation,
		Chapter:      src.Chapter,
		Dynamic:      append([]DynamicCondition(nil), src.Dynamic...),
		dynState:     src.dynState,
		pruned:       src.pruned,
	}
	clonePayload(dst, src)
	dst.SplitAt = dst.units()
	t.nodes = append(t.nodes, dst)
	return dst.ID
}

// DeepCopy 递归复制整棵子树，每个副本节点都获得新的 tracking id。
func (t *Tree) DeepCopy(id NodeID) NodeID {
	cp := t.ShallowCopy(id)
	t.tracking++
	t.Node(cp).Tracking = t.tracking
	t.Node(cp).dynState = dynNotApplied
	if src := t.Node(id); src.List != nil && src.List.WhenEmpty != NoNode {
		t.Node(cp).List.WhenEmpty = t.DeepCopy(src.List.WhenEmpty)
	}
	if src := t.Node(id); src.Page != nil {
		if src.Page.Header != NoNode {
			t.Node(cp).Page.Header = t.DeepCopy(src.Page.Header)
		}
		if src.Page.Footer != NoNode {
			t.Node(cp).Page.Footer = t.DeepCopy(src.Page.Footer)
		}
	}
	for _, c := range t.Node(id).Children {
		t.AddChild(cp, t.DeepCopy(c))
	}
	cn := t.Node(cp)
	cn.SplitAt = cn.units()
	return cp
}

// Root 返回 id 所在树的根。
func (t *Tree) Root(id NodeID) NodeID {
	for t.Node(id).Parent != NoNode {
		id = t.Node(id).Parent
	}
	return id
}

// Walk 先序遍历子树；fn 返回 false 时不再进入该节点的子节点。
func (t *Tree) Walk(id NodeID, fn func(*Node) bool) {
	n := t.Node(id)
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// Scope 指定 find 向上查找上下文根的方式。
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeChapter
	ScopeDocument
	ScopeUp
)

// FindContext 描述 find 的上下文；ScopeUp 时 Levels 表示向上的层数。
type FindContext struct {
	Scope  Scope
	Levels int
}

func (t *Tree) contextRoot(from NodeID, ctx FindContext) NodeID {
	switch ctx.Scope {
	case ScopeLocal:
		return from
	case ScopeChapter:
		for id := t.Node(from).Parent; id != NoNode; id = t.Node(id).Parent {
			if t.Node(id).Chapter {
				return id
			}
		}
		return t.Root(from)
	case ScopeDocument:
		return t.Root(from)
	case ScopeUp:
		id := from
		for i := 0; i < ctx.Levels && t.Node(id).Parent != NoNode; i++ {
			id = t.Node(id).Parent
		}
		return id
	}
	return from
}

// Find 从 from 出发，先按上下文向上找到根，再向下按 kind+name 查找第一个匹配节点。
func (t *Tree) Find(from NodeID, ctx FindContext, kind Kind, name string) NodeID {
	root := t.contextRoot(from, ctx)
	found := NoNode
	t.Walk(root, func(n *Node) bool {
		if found != NoNode {
			return false
		}
		if n.Kind == kind && n.Name == name {
			found = n.ID
			return false
		}
		return true
	})
	return found
}

// Verify 检查子树的结构不变式：父引用、序号与拆分游标。
func (t *Tree) Verify(id NodeID) error {
	n := t.Node(id)
	if n.SplitAt < 0 || n.SplitAt > n.units() {
		return fmt.Errorf("%w: %v 的拆分游标 %d 超出 [0,%d]", ErrInvariant, n, n.SplitAt, n.units())
	}
	if n.Bounds.Bottom > n.Bounds.Top+epsilon {
		return fmt.Errorf("%w: %v 的 bottom %.3f 高于 top %.3f", ErrInvariant, n, n.Bounds.Bottom, n.Bounds.Top)
	}
	for i, c := range n.Children {
		cn := t.Node(c)
		if cn.Parent != id {
			return fmt.Errorf("%w: %v 的父引用指向 %d，实际父节点为 %v", ErrInvariant, cn, cn.Parent, n)
		}
		if cn.Ordinal != i {
			return fmt.Errorf("%w: %v 的序号为 %d，实际位置为 %d", ErrInvariant, cn, cn.Ordinal, i)
		}
		if err := t.Verify(c); err != nil {
			return err
		}
	}
	return nil
}
