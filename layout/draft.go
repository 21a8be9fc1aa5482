package layout

import (
	"fmt"
	"math"
)

// markerGap 是列表编号与正文之间的间距（mm）。
const markerGap = 1.5

// draft 是首轮排版：节点在 [left,right] 内、从 top 开始自上而下摆放子节点（文本则是行），
// 并把自己的 bottom 设为游标最终位置。没有可见内容的节点高度为零。
func (e *engine) draft(id NodeID, left, right, top float64) error {
	n := e.tree.Node(id)
	n.Bounds = Rect{Left: left, Right: right, Top: top, Bottom: top}
	if n.hidden() {
		return nil
	}
	pad := n.style().Padding
	innerLeft := left + pad.Left
	innerRight := math.Max(right-pad.Right, innerLeft)

	switch n.Kind {
	case KindText:
		return e.draftText(n, innerLeft, innerRight, top)
	case KindPicture:
		return e.draftPicture(n, innerLeft, innerRight, top)
	case KindSpace:
		h := n.Space.Height
		if n.Space.Collapsed {
			h = 0
		}
		n.Bounds = n.Bounds.WithHeight(h)
		return nil
	case KindLine:
		n.Bounds = Rect{Left: innerLeft, Right: innerRight, Top: top}.WithHeight(math.Max(n.Rule.Thickness, 0.1))
		return nil
	case KindTable:
		if err := e.assignColumns(n, innerRight-innerLeft); err != nil {
			return designErr(n, err)
		}
	case KindTableRow, KindPhotoRow:
		return e.draftRow(n, innerLeft, top)
	case KindPhotoTable:
		e.assignPhotoColumns(n, innerRight-innerLeft)
	case KindListItem:
		indent, err := e.itemIndent(n)
		if err != nil {
			return designErr(n, err)
		}
		innerLeft = math.Min(innerLeft+indent, innerRight)
	case KindPage:
		body := n.Page.Body
		n.Bounds = Rect{Left: body.Left, Right: body.Right, Top: body.Top, Bottom: body.Top}
		innerLeft, innerRight, top = body.Left, body.Right, body.Top
	}
	return e.draftStack(n, innerLeft, innerRight, top)
}

// draftStack 纵向摆放子节点：游标每次下移子节点高度与其前间距。
func (e *engine) draftStack(n *Node, left, right, top float64) error {
	pad := n.style().Padding
	cursor := top - pad.Top
	visible := false
	for _, c := range n.Children {
		if err := e.draft(c, left, right, cursor); err != nil {
			return err
		}
		cn := e.tree.Node(c)
		if cn.Bounds.IsZeroHeight() {
			cn.GapBefore = 0
			continue
		}
		cn.GapBefore = 0
		if visible {
			cn.GapBefore = cn.style().Spacing
		}
		if cn.GapBefore != 0 {
			e.redraft(c, cursor-cn.GapBefore)
		}
		cursor = cn.Bounds.Bottom
		visible = true
	}
	if !visible {
		n.Bounds.Bottom = n.Bounds.Top
		return nil
	}
	n.Bounds.Bottom = cursor - pad.Bottom
	return nil
}

// draftRow 横向摆放单元格；行高取最高的单元格，所有单元格拉伸到同一高度。
func (e *engine) draftRow(n *Node, left, top float64) error {
	pad := n.style().Padding
	x := left
	for i, c := range n.Children {
		w := 0.0
		if i < len(n.Row.Widths) {
			w = n.Row.Widths[i]
		}
		if err := e.draft(c, x, x+w, top-pad.Top); err != nil {
			return err
		}
		e.tree.Node(c).GapBefore = 0
		x += w
	}
	e.stretchRow(n, top)
	return nil
}

// stretchRow 根据单元格的自然高度计算行高并拉伸单元格。
func (e *engine) stretchRow(n *Node, top float64) {
	pad := n.style().Padding
	bottom := top - pad.Top
	for _, c := range n.Children {
		bottom = math.Min(bottom, e.tree.Node(c).Bounds.Bottom)
	}
	if bottom >= top-pad.Top-epsilon {
		n.Bounds.Top, n.Bounds.Bottom = top, top
		return
	}
	for _, c := range n.Children {
		e.tree.Node(c).Bounds.Bottom = bottom
	}
	n.Bounds.Top = top
	n.Bounds.Bottom = bottom - pad.Bottom
}

func (e *engine) draftText(n *Node, left, right, top float64) error {
	st := n.Style
	if st == nil || st.FontName == "" {
		return designErr(n, fmt.Errorf("%w: 文本节点没有可用的字体样式", ErrMissingStyle))
	}
	left = math.Min(left+st.Indent, right)
	width := right - left
	lines, err := FlowText(e.opts.Typesetter, n.Text.Verses, st.Format(), width, width*e.opts.SoftBreak, st.ParagraphSpacing)
	if err != nil {
		return designErr(n, err)
	}
	for i := range lines {
		ln := &lines[i]
		ln.Bounds.Left, ln.Bounds.Right = left, right
		if off := alignOffset(width, ln.Width, st.Align); off > 0 {
			for j := range ln.Strokes {
				ln.Strokes[j].X += off
			}
		}
	}
	n.Text.Lines = lines
	n.SplitAt = len(lines)
	e.redraftText(n, top)
	return nil
}

func (e *engine) draftPicture(n *Node, left, right, top float64) error {
	pic := n.Picture
	avail := right - left
	w, h := pic.Width, pic.Height
	var img ImageResource
	if r, ok := e.res.Images[pic.Src]; ok {
		img = r
	}
	if w <= 0 {
		w = img.Width
	}
	if w <= 0 || w > avail {
		if w > avail && h > 0 {
			h *= avail / w
		}
		w = avail
	}
	if h <= 0 {
		if img.Width > 0 && img.Height > 0 {
			h = w * img.Height / img.Width
		} else {
			h = w * 0.75
		}
	}
	x := left + alignOffset(avail, w, n.style().Align)
	n.Bounds = Rect{Left: x, Right: x + w, Top: top}.WithHeight(h)
	return nil
}

// itemIndent 计算列表项正文的缩进：编号宽度加间距，且不小于列表设置的缩进。
func (e *engine) itemIndent(n *Node) (float64, error) {
	indent := 0.0
	list := NoNode
	if n.Parent != NoNode && e.tree.Node(n.Parent).Kind == KindList {
		list = n.Parent
		indent = e.tree.Node(list).List.Indent
	}
	if n.Item.Marker == "" {
		return indent, nil
	}
	st := n.style()
	if list != NoNode {
		st = e.tree.Node(list).style()
	}
	if st.FontName == "" {
		return indent, nil
	}
	face, err := e.face(st.Font, st.Size)
	if err != nil {
		return 0, err
	}
	n.Item.MarkerWidth = face.TextWidth(n.Item.Marker)
	return math.Max(indent, n.Item.MarkerWidth+markerGap), nil
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch align {
	case "center":
		return (container - width) / 2
	case "right":
		return container - width
	default:
		return 0
	}
}
