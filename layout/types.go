package layout

// 该文件定义布局结果与资源描述，供布局计算、渲染后端与调试 JSON 共用。

// Result 保存分页后的页面与资源信息。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色、图片与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径、embed 路径或 builtin:* 形式。
type FontResource struct {
	Name      string `json:"name"`
	Src       string `json:"src"`
	Style     string `json:"style"`
	Base      string `json:"base"`      // builtin 模式下记录真实字体名
	Family    string `json:"family"`    // 渲染器使用的 Family 名称
	IsBuiltin bool   `json:"isBuiltin"` // 是否为内建字体
	Fallback  string `json:"fallback"`
}

// ImageResource 记录图片资源，宽高统一以毫米为单位保存。
type ImageResource struct {
	Name   string  `json:"name"`
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPI    int     `json:"dpi"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Page 是一页排好的结果：几个盒子（页面坐标，原点左下，单位 mm）与三棵已定位的子树。
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin Margin  `json:"margin"`
	Media  Rect    `json:"media"`
	Body   Rect    `json:"body"`
	// HeaderBox/FooterBox 为空矩形时表示没有页眉/页脚
	HeaderBox Rect `json:"headerBox"`
	FooterBox Rect `json:"footerBox"`
	Root      *Box `json:"root"`
	Header    *Box `json:"header,omitempty"`
	Footer    *Box `json:"footer,omitempty"`
}

// Box 是交给渲染后端的节点快照。
type Box struct {
	Kind       string    `json:"kind"`
	Name       string    `json:"name,omitempty"`
	Tracking   int       `json:"tracking"`
	Bounds     Rect      `json:"bounds"`
	Style      string    `json:"style,omitempty"`
	Border     *Color    `json:"border,omitempty"`
	Background *Color    `json:"background,omitempty"`
	Align      string    `json:"align,omitempty"`
	Lines      []TextLine `json:"lines,omitempty"`
	Marker     *TextLine `json:"marker,omitempty"` // 列表项的编号/项目符号
	Image      *ImageBox `json:"image,omitempty"`
	Rule       *Line2D   `json:"rule,omitempty"`
	Header     bool      `json:"header,omitempty"`
	Children   []*Box    `json:"children,omitempty"`
	Debug      *BoxDebug `json:"debug,omitempty"`
}

// TextLine 是排好的一行文本。
type TextLine struct {
	Bounds   Rect        `json:"bounds"`
	Baseline float64     `json:"baseline"` // 基线的绝对 Y 坐标
	Strokes  []StrokeBox `json:"strokes"`
}

// StrokeBox 是行内同一格式的一段文字，X 为绝对坐标。
type StrokeBox struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Width     float64 `json:"width"`
	Font      string  `json:"font"`
	FontSize  float64 `json:"fontSize"`
	Color     Color   `json:"color"`
	Underline bool    `json:"underline,omitempty"`
}

// ImageBox 用于描述图片位置与尺寸。
type ImageBox struct {
	Path    string  `json:"path"`
	Fit     string  `json:"fit,omitempty"`
	Opacity float64 `json:"opacity"`
}

// Line2D 表示一条线段。
type Line2D struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color Color   `json:"color"`
	Width float64 `json:"width"` // 线宽（mm）
}

// BoxDebug holds optional debug info displayed only when enabled by BuildOptions.
type BoxDebug struct {
	RawUnits *RawUnits `json:"rawUnits,omitempty"`
	Origin   string    `json:"origin,omitempty"`
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize   *RawLengthJSON     `json:"fontSize,omitempty"`
	LineHeight *RawLineHeightJSON `json:"lineHeight,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawLineHeightJSON is a JSON-friendly representation of LineHeightSpec.
type RawLineHeightJSON struct {
	Kind   string  `json:"kind"` // "factor" | "absolute"
	Factor float64 `json:"factor,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// Style 是设计文件中的样式记录，Extends 指向被覆盖的基样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存文档元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
