package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnUnit 区分列宽的写法。
type ColumnUnit int

const (
	ColumnFraction ColumnUnit = iota // 1* 2*，按权重分配剩余宽度
	ColumnPercent                    // 30%
	ColumnFixed                      // 40mm
)

// ColumnSpec 是表格的一列定义。
type ColumnSpec struct {
	Unit  ColumnUnit `json:"unit"`
	Value float64    `json:"value"`
}

// ParseColumns 解析 "3"（三等分）或 "30% 70%"、"40mm 1* 2*" 形式的列定义。
func ParseColumns(v string) ([]ColumnSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return nil, fmt.Errorf("%w: 列数 %d 无效", ErrBadRule, n)
		}
		cols := make([]ColumnSpec, n)
		for i := range cols {
			cols[i] = ColumnSpec{Unit: ColumnFraction, Value: 1}
		}
		return cols, nil
	}
	var cols []ColumnSpec
	for _, f := range strings.Fields(v) {
		switch {
		case strings.HasSuffix(f, "*"):
			w := 1.0
			if num := strings.TrimSuffix(f, "*"); num != "" {
				parsed, err := strconv.ParseFloat(num, 64)
				if err != nil || parsed <= 0 {
					return nil, fmt.Errorf("%w: 列宽 %q 无效", ErrBadRule, f)
				}
				w = parsed
			}
			cols = append(cols, ColumnSpec{Unit: ColumnFraction, Value: w})
		case strings.HasSuffix(f, "%"):
			p, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64)
			if err != nil || p < 0 {
				return nil, fmt.Errorf("%w: 列宽 %q 无效", ErrBadRule, f)
			}
			cols = append(cols, ColumnSpec{Unit: ColumnPercent, Value: p})
		default:
			l := ParseRawLengthStr(f)
			if l.Value <= 0 {
				return nil, fmt.Errorf("%w: 列宽 %q 无效", ErrBadRule, f)
			}
			cols = append(cols, ColumnSpec{Unit: ColumnFixed, Value: l.ToMM()})
		}
	}
	return cols, nil
}

// columnWidths 按列定义分配宽度：先满足固定与百分比列，剩余宽度按权重分给 * 列；总宽超出时等比缩小。
func columnWidths(cols []ColumnSpec, width float64) []float64 {
	out := make([]float64, len(cols))
	used, weights := 0.0, 0.0
	for i, c := range cols {
		switch c.Unit {
		case ColumnFixed:
			out[i] = c.Value
		case ColumnPercent:
			out[i] = width * c.Value / 100
		case ColumnFraction:
			weights += c.Value
			continue
		}
		used += out[i]
	}
	if used > width && used > 0 {
		scale := width / used
		for i, c := range cols {
			if c.Unit != ColumnFraction {
				out[i] *= scale
			}
		}
		used = width
	}
	if weights > 0 {
		rest := width - used
		for i, c := range cols {
			if c.Unit == ColumnFraction {
				out[i] = rest * c.Value / weights
			}
		}
	}
	return out
}

// assignColumns 计算表格列宽并按跨列数写入每一行的单元格宽度。
func (e *engine) assignColumns(n *Node, width float64) error {
	cols := n.Table.Columns
	if len(cols) == 0 {
		count := 0
		for _, r := range n.Children {
			span := 0
			for _, c := range e.tree.Node(r).Children {
				span += max(e.tree.Node(c).Cell.Span, 1)
			}
			count = max(count, span)
		}
		if count == 0 {
			return nil
		}
		cols, _ = ParseColumns(strconv.Itoa(count))
	}
	n.Table.Widths = columnWidths(cols, width)
	for _, r := range n.Children {
		row := e.tree.Node(r)
		if row.Kind != KindTableRow {
			return fmt.Errorf("%w: 表格只能包含 row，实际为 %s", ErrUnsupportedKind, row.Kind)
		}
		row.Row.Widths = spanWidths(n.Table.Widths, e.cellSpans(row))
	}
	return nil
}

func (e *engine) cellSpans(row *Node) []int {
	spans := make([]int, len(row.Children))
	for i, c := range row.Children {
		spans[i] = 1
		if cell := e.tree.Node(c).Cell; cell != nil && cell.Span > 1 {
			spans[i] = cell.Span
		}
	}
	return spans
}

// spanWidths 将列宽按跨列数合并为单元格宽度；超出列数的单元格宽度为零。
func spanWidths(cols []float64, spans []int) []float64 {
	out := make([]float64, len(spans))
	col := 0
	for i, s := range spans {
		for k := 0; k < s && col < len(cols); k++ {
			out[i] += cols[col]
			col++
		}
	}
	return out
}

// assignPhotoColumns 将照片行平均分成 Columns 列，列之间留 Gap。
func (e *engine) assignPhotoColumns(n *Node, width float64) {
	cols := max(n.Photos.Columns, 1)
	gap := n.Photos.Gap
	cell := (width - gap*float64(cols-1)) / float64(cols)
	if cell < 0 {
		cell, gap = width/float64(cols), 0
	}
	for _, r := range n.Children {
		row := e.tree.Node(r)
		row.Row.Widths = make([]float64, len(row.Children))
		for i := range row.Children {
			row.Row.Widths[i] = cell
			if i < len(row.Children)-1 {
				row.Row.Widths[i] += gap
			}
		}
	}
}

// repeatHeader 把表头行的深拷贝插到续表的最前面。
func (e *engine) repeatHeader(table, cont NodeID) {
	t := e.tree.Node(table)
	if t.Table.HeaderRows <= 0 || len(e.tree.Node(cont).Children) == 0 {
		return
	}
	if first := e.tree.Node(e.tree.Node(cont).Children[0]); first.Row != nil && first.Row.Header {
		return
	}
	at := 0
	for _, r := range t.Children {
		rn := e.tree.Node(r)
		if rn.Row == nil || !rn.Row.Header || at >= t.Table.HeaderRows {
			break
		}
		cp := e.tree.DeepCopy(r)
		e.tree.Node(cp).GapBefore = 0
		e.tree.InsertChild(cont, at, cp)
		at++
	}
	if at > 0 && at < len(e.tree.Node(cont).Children) {
		next := e.tree.Node(e.tree.Node(cont).Children[at])
		next.GapBefore = next.style().Spacing
	}
}

// headerRows 返回位于表格开头的表头行数。
func (e *engine) headerRows(n *Node) int {
	count := 0
	for _, r := range n.Children {
		rn := e.tree.Node(r)
		if rn.Row == nil || !rn.Row.Header {
			break
		}
		count++
	}
	return count
}
