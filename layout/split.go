package layout

// pageBreak 在节点的 SplitAt 处执行拆分：原节点保留本页部分，返回的续节点承接移到下一页的部分。
// 没有需要移动的内容时返回 NoNode。
func (e *engine) pageBreak(id NodeID) NodeID {
	n := e.tree.Node(id)
	var cont NodeID
	switch {
	case n.Kind == KindText:
		cont = e.splitText(n)
	case n.Kind.horizontal():
		cont = e.splitRow(n)
	case n.Kind.leaf():
		return NoNode
	default:
		cont = e.splitStack(n)
	}
	if cont != NoNode {
		e.tracef("split %v at %d", n, n.SplitAt)
	}
	n.SplitAt = n.units()
	n.disp = ThisPage
	return cont
}

// continuation 生成节点的浅拷贝作为续节点：已生效的 new-page 不再重复触发。
func (e *engine) continuation(id NodeID) NodeID {
	cont := e.tree.ShallowCopy(id)
	cn := e.tree.Node(cont)
	cn.Continuation = true
	if cn.Rules != nil {
		cn.Rules.NewPage = false
	}
	cn.disp = ThisPage
	return cont
}

func (e *engine) splitText(n *Node) NodeID {
	at := n.SplitAt
	if at >= len(n.Text.Lines) {
		return NoNode
	}
	cont := e.continuation(n.ID)
	cn := e.tree.Node(cont)
	cn.Text.Lines = cn.Text.Lines[at:]
	cn.Text.Lines[0].GapBefore = 0
	cn.SplitAt = len(cn.Text.Lines)
	n.Text.Lines = n.Text.Lines[:at:at]
	return cont
}

// splitStack 拆分纵向容器：递归拆分 SplitAt 处的子节点，其后的子节点整体移入续节点。
func (e *engine) splitStack(n *Node) NodeID {
	at := n.SplitAt
	if at >= len(n.Children) {
		return NoNode
	}
	id := n.ID
	cont := e.continuation(id)
	moveFrom := at
	child := e.tree.Node(n.Children[at])
	if child.disp == Split {
		if cc := e.pageBreak(child.ID); cc != NoNode {
			e.tree.AddChild(cont, cc)
		}
		moveFrom = at + 1
		if child.units() == 0 && !child.Kind.leaf() {
			e.tree.RemoveChild(id, child.ID)
			moveFrom = at
		}
	}
	for _, c := range append([]NodeID(nil), n.Children[moveFrom:]...) {
		e.tree.AddChild(cont, c)
	}
	cn := e.tree.Node(cont)
	if len(cn.Children) == 0 {
		return NoNode
	}
	e.tree.Node(cn.Children[0]).GapBefore = 0
	switch n.Kind {
	case KindTable:
		e.repeatHeader(id, cont)
	case KindList:
		e.continueNumbering(id, cont)
	}
	cn.SplitAt = cn.units()
	return cont
}

// splitRow 让所有单元格在同一页界同步拆分；未拆分的单元格在续行中用空单元格占位，保持列数一致。
func (e *engine) splitRow(n *Node) NodeID {
	cont := e.continuation(n.ID)
	produced := false
	for _, c := range n.Children {
		cc := NoNode
		if e.tree.Node(c).disp == Split {
			cc = e.pageBreak(c)
		}
		if cc == NoNode {
			cc = e.continuation(c)
			e.tree.Clear(cc)
			cn := e.tree.Node(cc)
			if cn.Text != nil {
				cn.Text.Lines = nil
			}
			cn.SplitAt = cn.units()
		} else {
			produced = true
		}
		e.tree.AddChild(cont, cc)
	}
	if !produced {
		e.tree.Clear(cont)
		return NoNode
	}
	e.tree.Node(cont).SplitAt = len(n.Children)
	return cont
}

// continueNumbering 让续列表接着本页最后一个编号往下编。
func (e *engine) continueNumbering(id, cont NodeID) {
	n := e.tree.Node(id)
	next := n.List.Start
	for _, c := range n.Children {
		cn := e.tree.Node(c)
		if cn.Kind == KindListItem && !cn.Item.Placeholder && !cn.Continuation {
			next++
		}
	}
	e.tree.Node(cont).List.Start = next
	e.renumber(cont)
}
