package layout

// assess 判断节点在页面主体 body 中的去留，并在 Split/Overflow 时设置 SplitAt。
// 结论同时记在节点上，供 pageBreak 与 bump 使用。
func (e *engine) assess(id NodeID, body Rect) Disposition {
	n := e.tree.Node(id)
	d := e.assessNode(n, body)
	n.disp = d
	return d
}

func (e *engine) assessNode(n *Node, body Rect) Disposition {
	if !n.visible() {
		n.SplitAt = n.units()
		return ThisPage
	}
	if n.Rules != nil && n.Rules.NewPage {
		n.Rules.NewPage = false
		n.SplitAt = 0
		e.tracef("%v: new-page", n)
		return NewPage
	}
	if mp := n.maxPosition(); mp > 0 && body.Fraction(n.Bounds.Top) > mp+epsilon {
		n.SplitAt = 0
		e.tracef("%v: top at %.2f of body exceeds max-position %.2f", n, body.Fraction(n.Bounds.Top), mp)
		return Overflow
	}

	switch {
	case n.Kind == KindText:
		return e.assessText(n, body)
	case n.Kind.horizontal():
		return e.assessRow(n, body)
	case n.Kind.leaf():
		if n.Bounds.Bottom < body.Bottom-epsilon {
			n.SplitAt = 0
			return Overflow
		}
		n.SplitAt = 1
		return ThisPage
	}
	return e.assessStack(n, body)
}

func (n *Node) maxPosition() float64 {
	if n.Rules == nil {
		return 0
	}
	return n.Rules.MaxPosition
}

// assessText 找到第一行越过页面底部的位置。
func (e *engine) assessText(n *Node, body Rect) Disposition {
	lines := n.Text.Lines
	for k, ln := range lines {
		if ln.Bounds.Bottom >= body.Bottom-epsilon {
			continue
		}
		if k == 0 || k < n.minLines() {
			n.SplitAt = 0
			return Overflow
		}
		n.SplitAt = k
		return Split
	}
	n.SplitAt = len(lines)
	return ThisPage
}

// assessRow 分别评估每个单元格再合并：任一 NewPage 则整行 NewPage，任一 Overflow 则整行移走，
// 否则只要有单元格需要拆分，整行就按同一页界拆分。
func (e *engine) assessRow(n *Node, body Rect) Disposition {
	split := -1
	overflow := false
	for i, c := range n.Children {
		switch e.assess(c, body) {
		case NewPage:
			n.SplitAt = 0
			return NewPage
		case Overflow:
			overflow = true
		case Split:
			if split < 0 {
				split = i
			}
		}
	}
	switch {
	case overflow:
		n.SplitAt = 0
		return Overflow
	case split < 0:
		n.SplitAt = len(n.Children)
		return ThisPage
	case n.minLines() == 1:
		// min-lines 1 表示整行不可拆分
		n.SplitAt = 0
		return Overflow
	}
	n.SplitAt = split
	return Split
}

// assessStack 是纵向容器的通用评估。
func (e *engine) assessStack(n *Node, body Rect) Disposition {
	cursor := -1
	leading := true
	var child Disposition
	for i, c := range n.Children {
		d := e.assess(c, body)
		if d == ThisPage {
			if e.tree.Node(c).visible() {
				leading = false
			}
			continue
		}
		if d == NewPage && leading {
			n.SplitAt = 0
			return NewPage
		}
		cursor, child = i, d
		break
	}
	if cursor < 0 {
		n.SplitAt = len(n.Children)
		return ThisPage
	}

	if child == Overflow {
		cursor = e.keepWithNext(n, cursor, body)
	}
	split := child == Split && cursor < len(n.Children) && e.tree.Node(n.Children[cursor]).disp == Split
	if !e.canSplit(n, cursor, split) {
		n.SplitAt = 0
		e.tracef("%v: split at %d not allowed, overflow", n, cursor)
		return Overflow
	}
	n.SplitAt = cursor
	return Split
}

// keepWithNext 从拆分点向前回溯：前一个兄弟要求与下一个同页时，一起移到下一页，
// 直到某个兄弟不要求、或者连同它一起移动会超过一整页。
func (e *engine) keepWithNext(n *Node, cursor int, body Rect) int {
	if cursor >= len(n.Children) {
		return cursor
	}
	bottom := e.tree.Node(n.Children[cursor]).Bounds.Bottom
	for cursor > 0 {
		prev := e.tree.Node(n.Children[cursor-1])
		if !prev.keepWithNext() || prev.disp == Split {
			break
		}
		if prev.Bounds.Top-bottom > body.Height()+epsilon {
			break
		}
		e.tracef("%v: keep-with-next pulls %v to next page", n, prev)
		cursor--
	}
	return cursor
}

// canSplit 判断在 cursor 处拆分后，本页保留的部分是否合法。
// split 表示 cursor 处的子节点自身被拆分（只留下一部分在本页）。
// 隐藏或零高度的子节点不算留在本页的内容。
func (e *engine) canSplit(n *Node, cursor int, split bool) bool {
	from := 0
	if n.Kind == KindTable {
		from = min(cursor, e.headerRows(n))
		if cursor < e.headerRows(n) {
			split = false
		}
	}
	kept := 0
	for _, c := range n.Children[from:cursor] {
		if e.tree.Node(c).visible() {
			kept++
		}
	}
	if ml := n.minLines(); ml > 0 {
		return kept >= ml
	}
	return kept > 0 || split
}
