package layout

import (
	"io"
	"log"
)

// engine 持有一份文档一次排版所需的全部状态；不复用，也不在多个文档之间共享。
type engine struct {
	tree   *Tree
	opts   BuildOptions
	res    ResourceSet
	styles *styleCache
	trace  *log.Logger
	faces  map[faceKey]Face
}

type faceKey struct {
	font string
	src  string
	size float64
}

func newEngine(opts BuildOptions, res ResourceSet) *engine {
	opts = opts.withDefaults()
	out := opts.Trace
	if out == nil {
		out = io.Discard
	}
	return &engine{
		tree:   NewTree(),
		opts:   opts,
		res:    res,
		styles: newStyleCache(res),
		trace:  log.New(out, "paginate: ", 0),
		faces:  map[faceKey]Face{},
	}
}

func (e *engine) tracef(format string, args ...any) {
	if e.opts.Trace == nil {
		return
	}
	e.trace.Printf(format, args...)
}

// face 缓存同一字体与字号的测量面。
func (e *engine) face(font FontResource, size float64) (Face, error) {
	key := faceKey{font: font.Name, src: font.Src, size: size}
	if f, ok := e.faces[key]; ok {
		return f, nil
	}
	f, err := e.opts.Typesetter.Face(font, size)
	if err != nil {
		return nil, err
	}
	e.faces[key] = f
	return f, nil
}

// style 返回节点的有效样式；未设置时使用默认样式。
func (n *Node) style() *ResolvedStyle {
	if n.Style == nil {
		return defaultStyle
	}
	return n.Style
}

// hidden 表示节点因条件不满足而不参与排版。
func (n *Node) hidden() bool {
	return n.pruned || !n.StaticOK
}

// visible 表示节点在页面上占有高度。
func (n *Node) visible() bool {
	return !n.hidden() && !n.Bounds.IsZeroHeight()
}
