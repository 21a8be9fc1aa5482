package layout

// exportPage 把一页的节点树转换为渲染后端使用的 Box 快照。
func (e *engine) exportPage(id NodeID) Page {
	p := e.tree.Node(id).Page
	page := Page{
		Number:    p.Number,
		Width:     p.Width,
		Height:    p.Height,
		Margin:    p.Margin,
		Media:     p.Media,
		Body:      p.Body,
		HeaderBox: p.HeaderBox,
		FooterBox: p.FooterBox,
		Root:      e.exportBox(id),
	}
	if p.Header != NoNode {
		page.Header = e.exportBox(p.Header)
	}
	if p.Footer != NoNode {
		page.Footer = e.exportBox(p.Footer)
	}
	return page
}

func (e *engine) exportBox(id NodeID) *Box {
	n := e.tree.Node(id)
	if n.hidden() {
		return nil
	}
	b := &Box{
		Kind:     n.Kind.String(),
		Name:     n.Name,
		Tracking: n.Tracking,
		Bounds:   n.Bounds,
	}
	if st := n.Style; st != nil {
		b.Style = st.Name
		b.Border = st.Border
		b.Background = st.Background
		b.Align = st.Align
	}

	switch n.Kind {
	case KindText:
		b.Lines = exportLines(n.Text.Lines)
	case KindListItem:
		b.Marker = e.exportMarker(n)
	case KindPicture:
		path := n.Picture.Src
		if img, ok := e.res.Images[path]; ok {
			path = img.Src
		}
		b.Image = &ImageBox{Path: path, Fit: n.Picture.Fit, Opacity: n.Picture.Opacity}
	case KindLine:
		mid := (n.Bounds.Top + n.Bounds.Bottom) / 2
		b.Rule = &Line2D{
			X1: n.Bounds.Left, Y1: mid,
			X2: n.Bounds.Right, Y2: mid,
			Color: n.Rule.Color,
			Width: n.Rule.Thickness,
		}
	case KindTableRow:
		b.Header = n.Row.Header
	}

	for _, c := range n.Children {
		if cb := e.exportBox(c); cb != nil {
			b.Children = append(b.Children, cb)
		}
	}

	if e.opts.Debug.RawUnits {
		b.Debug = &BoxDebug{Origin: n.Origin}
		if n.Style != nil {
			b.Debug.RawUnits = rawUnits(n.Style)
		}
	}
	return b
}

// exportLines 把行内坐标换算成页面绝对坐标。
func exportLines(lines []Line) []TextLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]TextLine, 0, len(lines))
	for _, ln := range lines {
		tl := TextLine{
			Bounds:   ln.Bounds,
			Baseline: ln.Bounds.Top - ln.Baseline,
		}
		for _, s := range ln.Strokes {
			if s.Text == "" {
				continue
			}
			sb := StrokeBox{Text: s.Text, X: ln.Bounds.Left + s.X, Width: s.Width}
			if fm := s.Format; fm != nil {
				sb.Font = fm.FontName
				sb.FontSize = fm.Size
				sb.Color = fm.Color
				sb.Underline = fm.Underline
			}
			tl.Strokes = append(tl.Strokes, sb)
		}
		out = append(out, tl)
	}
	return out
}

// exportMarker 将编号放在列表项第一行文字的基线上；续项不再显示编号。
func (e *engine) exportMarker(n *Node) *TextLine {
	if n.Item.Marker == "" || n.Continuation {
		return nil
	}
	st := n.style()
	if n.Parent != NoNode && e.tree.Node(n.Parent).Kind == KindList {
		st = e.tree.Node(n.Parent).style()
	}
	x := n.Bounds.Left + n.style().Padding.Left
	line := Rect{Left: x, Right: x + n.Item.MarkerWidth, Top: n.Bounds.Top, Bottom: n.Bounds.Top - st.Size}
	baseline := n.Bounds.Top - st.Size*0.8
	if first, ok := e.firstLine(n.ID); ok {
		line.Top, line.Bottom = first.Bounds.Top, first.Bounds.Bottom
		baseline = first.Bounds.Top - first.Baseline
	}
	return &TextLine{
		Bounds:   line,
		Baseline: baseline,
		Strokes: []StrokeBox{{
			Text:     n.Item.Marker,
			X:        x,
			Width:    n.Item.MarkerWidth,
			Font:     st.FontName,
			FontSize: st.Size,
			Color:    st.Color,
		}},
	}
}

func (e *engine) firstLine(id NodeID) (Line, bool) {
	var (
		found Line
		ok    bool
	)
	e.tree.Walk(id, func(n *Node) bool {
		if ok || n.hidden() {
			return false
		}
		if n.Kind == KindText && len(n.Text.Lines) > 0 {
			found, ok = n.Text.Lines[0], true
			return false
		}
		return true
	})
	return found, ok
}

func rawUnits(st *ResolvedStyle) *RawUnits {
	ru := &RawUnits{}
	if !st.SizeRaw.IsZero() {
		ru.FontSize = &RawLengthJSON{Value: st.SizeRaw.Value, Unit: UnitToString(st.SizeRaw.Unit)}
	}
	if st.LeadingRaw != "" {
		lh := &RawLineHeightJSON{}
		switch st.Leading.Kind {
		case LineHeightAbsolute:
			lh.Kind = "absolute"
			lh.Value = st.Leading.Len.Value
			lh.Unit = UnitToString(st.Leading.Len.Unit)
		default:
			lh.Kind = "factor"
			lh.Factor = st.Leading.Factor
		}
		ru.LineHeight = lh
	}
	if ru.FontSize == nil && ru.LineHeight == nil {
		return nil
	}
	return ru
}
