package layout

// redraft 只根据已存的高度与间距重新计算纵向位置，不重新测量文本，也不改变横向布局。
// 对同一个 top 重复调用结果不变。
func (e *engine) redraft(id NodeID, top float64) {
	n := e.tree.Node(id)
	if n.hidden() {
		n.Bounds.Top, n.Bounds.Bottom = top, top
		return
	}
	switch {
	case n.Kind == KindText:
		e.redraftText(n, top)
	case n.Kind == KindSpace && n.Space.Collapsed:
		n.Bounds.Top, n.Bounds.Bottom = top, top
	case n.Kind.leaf():
		n.Bounds = n.Bounds.Shift(top - n.Bounds.Top)
	case n.Kind.horizontal():
		pad := n.style().Padding
		for _, c := range n.Children {
			e.redraft(c, top-pad.Top)
		}
		e.stretchRow(n, top)
	default:
		e.redraftStack(n, top)
	}
}

func (e *engine) redraftStack(n *Node, top float64) {
	pad := n.style().Padding
	if n.Kind == KindPage {
		pad = Margin{}
	}
	cursor := top - pad.Top
	visible := false
	for _, c := range n.Children {
		cn := e.tree.Node(c)
		gap := cn.GapBefore
		if !visible {
			gap = 0
		}
		e.redraft(c, cursor-gap)
		if cn.Bounds.IsZeroHeight() {
			// 零高度的节点不占位置，也不带入间距
			e.redraft(c, cursor)
			continue
		}
		cursor = cn.Bounds.Bottom
		visible = true
	}
	n.Bounds.Top = top
	if !visible {
		n.Bounds.Bottom = top
		return
	}
	n.Bounds.Bottom = cursor - pad.Bottom
}

func (e *engine) redraftText(n *Node, top float64) {
	pad := n.style().Padding
	cursor := top - pad.Top
	for i := range n.Text.Lines {
		ln := &n.Text.Lines[i]
		if i > 0 {
			cursor -= ln.GapBefore
		}
		ln.Bounds.Top = cursor
		ln.Bounds.Bottom = cursor - ln.Height
		cursor = ln.Bounds.Bottom
	}
	n.Bounds.Top = top
	if len(n.Text.Lines) == 0 {
		n.Bounds.Bottom = top
		return
	}
	n.Bounds.Bottom = cursor - pad.Bottom
}
