package layout

// bump 在评估得出“从第 0 个位置拆分”（单个子节点比整页还高）时，强制把拆分点向后推，
// 先尝试推进出问题的子节点内部。返回 false 表示无法再推进，调用方只能接受超高的页面。
func (e *engine) bump(id NodeID, body Rect) bool {
	n := e.tree.Node(id)
	switch {
	case n.Kind == KindText:
		return e.bumpText(n, body)
	case n.Kind.leaf():
		return false
	case n.Kind.horizontal():
		bumped := false
		for _, c := range n.Children {
			if e.bump(c, body) {
				bumped = true
			} else {
				e.tree.Node(c).disp = ThisPage
			}
		}
		if bumped {
			n.disp = Split
		}
		return bumped
	}

	if len(n.Children) == 0 {
		return false
	}
	at := min(n.SplitAt, len(n.Children)-1)
	for at < len(n.Children)-1 && !e.tree.Node(n.Children[at]).visible() {
		at++
	}
	if e.bump(n.Children[at], body) {
		n.SplitAt = at
		n.disp = Split
		return true
	}
	if at+1 >= len(n.Children) {
		return false
	}
	e.tree.Node(n.Children[at]).disp = ThisPage
	n.SplitAt = at + 1
	e.tree.Node(n.Children[at+1]).disp = Overflow
	n.disp = Split
	return true
}

// bumpText 放弃无法满足的 min-lines：本页放下能放下的行，至少一行。
func (e *engine) bumpText(n *Node, body Rect) bool {
	lines := n.Text.Lines
	if len(lines) <= 1 {
		return false
	}
	fit := 0
	for _, ln := range lines {
		if ln.Bounds.Bottom < body.Bottom-epsilon {
			break
		}
		fit++
	}
	n.SplitAt = min(max(fit, 1), len(lines)-1)
	n.disp = Split
	e.tracef("%v: bump keeps %d of %d lines", n, n.SplitAt, len(lines))
	return true
}
