package layout

import (
	"fmt"

	"github.com/ByLCY/quire/binding"
)

// NodeID 是节点在 Tree 中的句柄；父子关系都通过句柄表达，父引用不持有所有权。
type NodeID int32

// NoNode 表示空句柄。
const NoNode NodeID = -1

// Kind 标识节点种类。
type Kind int

const (
	KindPage Kind = iota
	KindGroup
	KindText
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindPhotoTable
	KindPhotoRow
	KindPhoto
	KindPicture
	KindSpace
	KindLine
)

var kindNames = [...]string{
	KindPage:       "page",
	KindGroup:      "group",
	KindText:       "text",
	KindList:       "list",
	KindListItem:   "item",
	KindTable:      "table",
	KindTableRow:   "row",
	KindTableCell:  "cell",
	KindPhotoTable: "photos",
	KindPhotoRow:   "photo-row",
	KindPhoto:      "photo",
	KindPicture:    "picture",
	KindSpace:      "space",
	KindLine:       "line",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind 将 DSL 中的元素名映射为 Kind。
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	switch name {
	case "table-row":
		return KindTableRow, true
	case "table-cell":
		return KindTableCell, true
	case "list-item":
		return KindListItem, true
	case "photo-table":
		return KindPhotoTable, true
	case "image":
		return KindPicture, true
	}
	return 0, false
}

// leaf reports whether nodes of this kind never own children.
func (k Kind) leaf() bool {
	switch k {
	case KindPicture, KindSpace, KindLine:
		return true
	}
	return false
}

// horizontal 表示子节点横向排列（表格行、照片行）。
func (k Kind) horizontal() bool {
	return k == KindTableRow || k == KindPhotoRow
}

// Disposition 是分页评估的结论。
type Disposition int

const (
	ThisPage Disposition = iota // 整体留在当前页
	NewPage                     // 必须另起新页
	Overflow                    // 整体移到下一页
	Split                       // 在 SplitAt 处拆分
)

func (d Disposition) String() string {
	switch d {
	case ThisPage:
		return "this-page"
	case NewPage:
		return "new-page"
	case Overflow:
		return "overflow"
	case Split:
		return "split"
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// PageBreakRules 是节点的分页规则。复制节点时按值复制，运行期会被修改（例如 NewPage 生效后解除）。
type PageBreakRules struct {
	NewPage      bool    `json:"newPage,omitempty"`
	KeepWithNext bool    `json:"keepWithNext,omitempty"`
	MaxPosition  float64 `json:"maxPosition,omitempty"` // 0..1，0 表示不限制
	MinLines     int     `json:"minLines,omitempty"`
}

func (r *PageBreakRules) clone() *PageBreakRules {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Node 是布局树中的一个节点。种类相关的数据放在对应的 payload 字段中，同一时刻只有与 Kind 匹配的那个非空。
type Node struct {
	ID       NodeID
	Kind     Kind
	Name     string // 设计文件里的 id，用于 find
	Bounds   Rect
	Parent   NodeID
	Children []NodeID
	Ordinal  int

	// GapBefore 是与前一个兄弟节点之间的间距，由 draft 计算，redraft 复用。
	GapBefore float64

	Style   *ResolvedStyle
	Rules   *PageBreakRules
	SplitAt int

	Tracking int
	Origin   string      // 模板位置，例如 report.quire:12:5
	Content  binding.Ref // 生成该节点的内容对象

	// 模板阶段的绑定信息：Source 为相对路径，When/Unless 为静态条件表达式。
	Source string
	When   string
	Unless string

	StaticOK     bool
	FromString   bool
	Required     bool
	Continuation bool // 拆分后的下半部分
	Chapter      bool // 作为 find 的 chapter 上下文根

	Dynamic  []DynamicCondition
	dynState dynState
	pruned   bool

	disp Disposition

	Text    *TextData
	Page    *PageData
	List    *ListData
	Item    *ItemData
	Table   *TableData
	Row     *RowData
	Cell    *CellData
	Photos  *PhotoTableData
	Picture *PictureData
	Space   *SpaceData
	Rule    *RuleData
}

// TextData 保存文本节点的原始脚本与排版后的行。
type TextData struct {
	Verses []Verse
	Lines  []Line
	// PageFields 为 true 时文本含 {page}/{pages} 占位符，需要在成页后替换。
	PageFields bool
}

// PageData 描述页面的几个盒子以及页眉/页脚模板。
type PageData struct {
	Width, Height float64
	Margin        Margin
	Media         Rect
	Body          Rect
	HeaderBox     Rect
	FooterBox     Rect
	Header        NodeID
	Footer        NodeID
	Number        int
}

// ListData 描述列表的编号方式与空列表占位。
type ListData struct {
	Bullet    string
	Numbered  bool
	Start     int
	Merge     bool
	Filter    string
	WhenEmpty NodeID // 模板节点，不在 Children 中
	Indent    float64
}

// ItemData 是列表项包装节点的数据。
type ItemData struct {
	Marker      string
	Number      int
	MarkerWidth float64
	Placeholder bool // when-empty 占位项，不参与编号
}

// TableData 记录列定义与需要在续页重复的表头行数。
type TableData struct {
	Columns    []ColumnSpec
	HeaderRows int
	Widths     []float64
}

// RowData 由所属表格在测量后写入列宽。
type RowData struct {
	Widths []float64
	Header bool
}

// CellData 记录单元格跨列数。
type CellData struct {
	Span int
}

// PhotoTableData 描述照片表每行的列数与图注模板。
type PhotoTableData struct {
	Columns int
	Caption string
	Gap     float64
}

// PictureData 描述图片资源与期望尺寸（mm）。
type PictureData struct {
	Src     string
	Width   float64
	Height  float64
	Fit     string
	Opacity float64
}

// SpaceData 是纯间距节点；位于页首时会被折叠。
type SpaceData struct {
	Height    float64
	Collapsed bool
}

// RuleData 描述一条水平线。
type RuleData struct {
	Thickness float64
	Color     Color
}

// units 返回节点可拆分单元的数量：文本为行数，叶子节点为 1，容器为子节点数。
func (n *Node) units() int {
	switch {
	case n.Kind == KindText:
		if n.Text == nil {
			return 0
		}
		return len(n.Text.Lines)
	case n.Kind.leaf():
		return 1
	default:
		return len(n.Children)
	}
}

func (n *Node) minLines() int {
	if n.Rules == nil {
		return 0
	}
	return n.Rules.MinLines
}

func (n *Node) keepWithNext() bool {
	return n.Rules != nil && n.Rules.KeepWithNext
}

func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s#%s(%d)", n.Kind, n.Name, n.Tracking)
	}
	return fmt.Sprintf("%s(%d)", n.Kind, n.Tracking)
}

func newPayload(n *Node) {
	switch n.Kind {
	case KindPage:
		n.Page = &PageData{Header: NoNode, Footer: NoNode}
	case KindText:
		n.Text = &TextData{}
	case KindList:
		n.List = &ListData{Start: 1, WhenEmpty: NoNode}
	case KindListItem:
		n.Item = &ItemData{}
	case KindTable:
		n.Table = &TableData{}
	case KindTableRow, KindPhotoRow:
		n.Row = &RowData{}
	case KindTableCell:
		n.Cell = &CellData{Span: 1}
	case KindPhotoTable:
		n.Photos = &PhotoTableData{Columns: 3}
	case KindPicture:
		n.Picture = &PictureData{Opacity: 1}
	case KindSpace:
		n.Space = &SpaceData{}
	case KindLine:
		n.Rule = &RuleData{}
	case KindGroup, KindPhoto:
	default:
		panic(fmt.Sprintf("layout: 未处理的节点种类 %v", n.Kind))
	}
}

// clonePayload 按值复制种类数据；切片会复制一份，避免副本与原节点共享可变状态。
func clonePayload(dst, src *Node) {
	if src.Text != nil {
		t := *src.Text
		t.Verses = append([]Verse(nil), src.Text.Verses...)
		t.Lines = make([]Line, len(src.Text.Lines))
		for i, ln := range src.Text.Lines {
			t.Lines[i] = ln.clone()
		}
		dst.Text = &t
	}
	if src.Page != nil {
		p := *src.Page
		dst.Page = &p
	}
	if src.List != nil {
		l := *src.List
		dst.List = &l
	}
	if src.Item != nil {
		it := *src.Item
		dst.Item = &it
	}
	if src.Table != nil {
		tb := *src.Table
		tb.Columns = append([]ColumnSpec(nil), src.Table.Columns...)
		tb.Widths = append([]float64(nil), src.Table.Widths...)
		dst.Table = &tb
	}
	if src.Row != nil {
		r := *src.Row
		r.Widths = append([]float64(nil), src.Row.Widths...)
		dst.Row = &r
	}
	if src.Cell != nil {
		c := *src.Cell
		dst.Cell = &c
	}
	if src.Photos != nil {
		p := *src.Photos
		dst.Photos = &p
	}
	if src.Picture != nil {
		p := *src.Picture
		dst.Picture = &p
	}
	if src.Space != nil {
		s := *src.Space
		dst.Space = &s
	}
	if src.Rule != nil {
		r := *src.Rule
		dst.Rule = &r
	}
}
