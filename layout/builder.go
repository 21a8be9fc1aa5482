package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/dsl"
)

// Build 根据设计文件与内容数据生成分页后的布局结果。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc)
	sections := pageSections(doc)
	if len(sections) == 0 {
		return nil, fmt.Errorf("文档中缺少 page 段落")
	}

	e := newEngine(opts, res)
	b := &builder{
		e:         e,
		templates: collectTemplates(doc),
		using:     map[string]bool{},
	}

	// 1. 载入模板树
	roots := make([]NodeID, 0, len(sections))
	for _, sec := range sections {
		root, err := b.loadPage(sec)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}

	// 2. 绑定内容；条件冲突收集后一并返回
	ref := binding.NewRoot(data)
	for _, root := range roots {
		if err := b.bind(root, ref, true); err != nil {
			return nil, err
		}
		page := e.tree.Node(root).Page
		for _, m := range []NodeID{page.Header, page.Footer} {
			if m == NoNode {
				continue
			}
			if err := b.bind(m, ref, true); err != nil {
				return nil, err
			}
		}
	}
	if len(b.conflicts) > 0 {
		return nil, errors.Join(b.conflicts...)
	}

	// 3. 动态条件、列表整理、首轮排版与分页
	type sequence struct {
		pages          []NodeID
		header, footer NodeID
	}
	var seqs []sequence
	total := 0
	for _, root := range roots {
		page := e.tree.Node(root).Page
		for _, id := range []NodeID{root, page.Header, page.Footer} {
			if id == NoNode {
				continue
			}
			if err := e.applyDynamic(id); err != nil {
				return nil, err
			}
			if err := b.cleanupLists(id); err != nil {
				return nil, err
			}
		}
		body := page.Body
		if err := e.draft(root, body.Left, body.Right, body.Top); err != nil {
			return nil, err
		}
		pages, err := e.paginate(root, total)
		if err != nil {
			return nil, err
		}
		total += len(pages)
		seqs = append(seqs, sequence{pages: pages, header: page.Header, footer: page.Footer})
	}

	// 4. 页眉页脚与导出
	result := &Result{Resources: res, Meta: meta}
	number := 0
	for _, seq := range seqs {
		for _, id := range seq.pages {
			number++
			if err := e.decorate(id, number, total, seq.header, seq.footer); err != nil {
				return nil, err
			}
			result.Pages = append(result.Pages, e.exportPage(id))
		}
	}
	return result, nil
}

// builder 把 DSL 载入为模板节点，再把模板绑定到内容数据。
type builder struct {
	e         *engine
	templates map[string]*dsl.TemplateSection
	using     map[string]bool
	conflicts []error
}

func (b *builder) pos(p lexer.Position) string {
	file := p.Filename
	if file == "" {
		file = b.e.opts.Origin
	}
	if file == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Column)
}

func (b *builder) errorAt(element string, p lexer.Position, err error) error {
	return &DesignError{Element: element, Origin: b.pos(p), Err: err}
}

func (b *builder) loadPage(sec *dsl.PageSection) (NodeID, error) {
	width, height, err := resolvePageSize(sec.Spec)
	if err != nil {
		return NoNode, b.errorAt("page", sec.Pos, err)
	}
	if sec.Block == nil {
		return NoNode, b.errorAt("page", sec.Pos, fmt.Errorf("page 段落缺少内容"))
	}
	margin := resolveMargin(sec.Spec.Params)

	t := b.e.tree
	root := t.New(KindPage)
	p := t.Node(root)
	p.Origin = b.pos(sec.Pos)
	pd := p.Page
	pd.Width, pd.Height, pd.Margin = width, height, margin
	pd.Media = Rect{Right: width, Top: height}

	headerH, footerH := 0.0, 0.0
	for _, st := range sec.Block.Statements {
		cmd := st.Command
		if cmd == nil || (cmd.Name != "header" && cmd.Name != "footer") {
			continue
		}
		_, attrs := parseAttrs(cmd.Args)
		g := t.New(KindGroup)
		t.Node(g).Origin = b.pos(cmd.Pos)
		if err := b.loadBlock(cmd.Block, g, ""); err != nil {
			return NoNode, err
		}
		h := parseLength(attrs["height"])
		if cmd.Name == "header" {
			pd.Header, headerH = g, h
		} else {
			pd.Footer, footerH = g, h
		}
	}

	// Word 逻辑：内容区域顶部 = max(上边距, 页眉高度)，底部 = max(下边距, 页脚高度)
	pd.Body = Rect{
		Left:   margin.Left,
		Right:  width - margin.Right,
		Top:    height - math.Max(margin.Top, headerH),
		Bottom: math.Max(margin.Bottom, footerH),
	}
	if pd.Body.Bottom > pd.Body.Top || pd.Body.Right < pd.Body.Left {
		return NoNode, b.errorAt("page", sec.Pos, fmt.Errorf("%w: 页边距与页眉页脚超出了页面尺寸", ErrBadRule))
	}
	if headerH > 0 {
		pd.HeaderBox = Rect{Left: margin.Left, Right: width - margin.Right, Top: height, Bottom: height - headerH}
	}
	if footerH > 0 {
		pd.FooterBox = Rect{Left: margin.Left, Right: width - margin.Right, Top: footerH, Bottom: 0}
	}
	p.Bounds = pd.Body

	if err := b.loadBlock(sec.Block, root, ""); err != nil {
		return NoNode, err
	}
	return root, nil
}

// loadBlock 载入块中的语句；块内直接出现的字符串视为继承样式的文本元素。
func (b *builder) loadBlock(block *dsl.Block, parent NodeID, style string) error {
	if block == nil {
		return nil
	}
	t := b.e.tree
	for _, st := range block.Statements {
		switch {
		case st.Text != nil:
			target := parent
			if t.Node(parent).Kind == KindTableRow {
				target = t.New(KindTableCell)
				t.AddChild(parent, target)
			}
			id, err := b.literalText(string(st.Text.Value), style)
			if err != nil {
				return designErr(t.Node(parent), err)
			}
			t.AddChild(target, id)
		case st.Command != nil:
			if err := b.loadCommand(st.Command, parent, style); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) literalText(s, style string) (NodeID, error) {
	t := b.e.tree
	id := t.New(KindText)
	n := t.Node(id)
	st, err := b.e.styles.resolve(style, nil)
	if err != nil {
		return NoNode, err
	}
	n.Style = st
	n.Text.Verses = appendLiteral(nil, s, nil)
	n.Text.PageFields = hasPageFields(n.Text.Verses)
	return id, nil
}

func (b *builder) loadCommand(cmd *dsl.Command, parent NodeID, style string) error {
	t := b.e.tree
	switch cmd.Name {
	case "header", "footer":
		if t.Node(parent).Kind == KindPage {
			return nil
		}
		return b.errorAt(cmd.Name, cmd.Pos, fmt.Errorf("%w: %s 只能出现在 page 中", ErrUnsupportedKind, cmd.Name))
	case "use":
		return b.loadUse(cmd, parent, style)
	}

	kind, ok := ParseKind(cmd.Name)
	if !ok || kind == KindPage || kind == KindPhotoRow || kind == KindPhoto {
		return b.errorAt(cmd.Name, cmd.Pos, fmt.Errorf("%w: %s", ErrUnsupportedKind, cmd.Name))
	}
	positional, attrs := parseAttrs(cmd.Args)

	id := t.New(kind)
	n := t.Node(id)
	n.Origin = b.pos(cmd.Pos)
	t.AddChild(parent, id)

	styleName, explicit := style, false
	switch kind {
	case KindPicture, KindSpace, KindLine:
	default:
		if len(positional) > 0 {
			styleName, explicit = positional[0], true
			positional = positional[1:]
		}
	}
	if err := b.applyStyle(n, kind, styleName, attrs, explicit); err != nil {
		return designErr(n, err)
	}
	if err := applyCommon(n, attrs); err != nil {
		return designErr(n, err)
	}

	switch kind {
	case KindText:
		verses, err := b.loadVerses(cmd.Block, nil, nil)
		if err != nil {
			return designErr(n, err)
		}
		for _, s := range positional {
			verses = appendLiteral(verses, s, nil)
		}
		n.Text.Verses = verses
		n.Text.PageFields = hasPageFields(verses)
		return nil
	case KindList:
		l := n.List
		l.Bullet = attrs["bullet"]
		l.Numbered = parseBool(attrs["numbered"])
		if !l.Numbered && l.Bullet == "" {
			l.Bullet = "•"
		}
		if v := attrs["start"]; v != "" {
			start, err := strconv.Atoi(v)
			if err != nil {
				return designErr(n, fmt.Errorf("%w: start %q 不是整数", ErrBadRule, v))
			}
			l.Start = start
		}
		l.Merge = parseBool(attrs["merge"])
		l.Filter = attrs["filter"]
		l.Indent = parseLength(attrs["indent"])
		if name := attrs["empty"]; name != "" {
			g, err := b.instantiate(name, styleName, cmd.Pos)
			if err != nil {
				return err
			}
			l.WhenEmpty = g
		}
	case KindTable:
		cols, err := ParseColumns(attrs["columns"])
		if err != nil {
			return designErr(n, err)
		}
		n.Table.Columns = cols
		if v := attrs["header-rows"]; v != "" {
			hr, err := strconv.Atoi(v)
			if err != nil || hr < 0 {
				return designErr(n, fmt.Errorf("%w: header-rows %q 无效", ErrBadRule, v))
			}
			n.Table.HeaderRows = hr
		}
	case KindTableRow:
		n.Row.Header = parseBool(attrs["header"])
	case KindTableCell:
		if v := attrs["span"]; v != "" {
			span, err := strconv.Atoi(v)
			if err != nil || span < 1 {
				return designErr(n, fmt.Errorf("%w: span %q 无效", ErrBadRule, v))
			}
			n.Cell.Span = span
		}
	case KindPhotoTable:
		if v := attrs["columns"]; v != "" {
			cols, err := strconv.Atoi(v)
			if err != nil || cols < 1 {
				return designErr(n, fmt.Errorf("%w: columns %q 无效", ErrBadRule, v))
			}
			n.Photos.Columns = cols
		}
		n.Photos.Gap = 2
		if v := attrs["gap"]; v != "" {
			n.Photos.Gap = parseLength(v)
		}
		n.Photos.Caption = attrs["caption"]
		if cmd.Block != nil {
			for _, st := range cmd.Block.Statements {
				if st.Assignment != nil && st.Assignment.Key == "caption" {
					n.Photos.Caption = valueToString(st.Assignment.Value)
				}
			}
		}
	case KindPicture:
		pic := n.Picture
		pic.Src = attrs["src"]
		if pic.Src == "" && len(positional) > 0 {
			pic.Src = positional[0]
		}
		pic.Width = parseLength(attrs["width"])
		pic.Height = parseLength(attrs["height"])
		pic.Fit = attrs["fit"]
		if v := attrs["opacity"]; v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				pic.Opacity = math.Min(math.Max(f, 0), 1)
			}
		}
		return nil
	case KindSpace:
		h := attrs["height"]
		if h == "" && len(positional) > 0 {
			h = positional[0]
		}
		n.Space.Height = parseLength(h)
		return nil
	case KindLine:
		w := attrs["width"]
		if w == "" {
			w = attrs["thickness"]
		}
		n.Rule.Thickness = parseLength(w)
		if n.Rule.Thickness <= 0 {
			n.Rule.Thickness = 0.2
		}
		n.Rule.Color = resolveColor(attrs["color"], b.e.res)
		return nil
	}

	if err := b.loadBlock(cmd.Block, id, styleName); err != nil {
		return err
	}
	if kind == KindTable {
		for i, r := range n.Children {
			if i < n.Table.HeaderRows {
				t.Node(r).Row.Header = true
			}
		}
		for _, r := range n.Children {
			if t.Node(r).Kind != KindTableRow {
				return designErr(t.Node(r), fmt.Errorf("%w: 表格只能包含 row", ErrUnsupportedKind))
			}
		}
	}
	return nil
}

// applyStyle 给节点设置样式。文本总是需要样式；容器只在显式指定样式或内联样式属性时才设置。
func (b *builder) applyStyle(n *Node, kind Kind, name string, attrs map[string]string, explicit bool) error {
	inline := false
	for k := range attrs {
		if styleProps[k] {
			inline = true
			break
		}
	}
	if kind != KindText && !explicit && !inline {
		return nil
	}
	st, err := b.e.styles.resolve(name, attrs)
	if err != nil {
		return err
	}
	n.Style = st
	return nil
}

// loadUse 以 use <name> 实例化模板，模板内容挂在一个 group 下。
func (b *builder) loadUse(cmd *dsl.Command, parent NodeID, style string) error {
	positional, attrs := parseAttrs(cmd.Args)
	if len(positional) == 0 {
		return b.errorAt("use", cmd.Pos, fmt.Errorf("%w: use 缺少模板名", ErrBadRule))
	}
	g, err := b.instantiate(positional[0], style, cmd.Pos)
	if err != nil {
		return err
	}
	n := b.e.tree.Node(g)
	if err := applyCommon(n, attrs); err != nil {
		return designErr(n, err)
	}
	b.e.tree.AddChild(parent, g)
	return nil
}

func (b *builder) instantiate(name, style string, at lexer.Position) (NodeID, error) {
	tpl, ok := b.templates[name]
	if !ok {
		return NoNode, b.errorAt("use", at, fmt.Errorf("%w: 模板 %s 未定义", ErrBadRule, name))
	}
	if b.using[name] {
		return NoNode, b.errorAt("use", at, fmt.Errorf("%w: 模板 %s 存在循环引用", ErrBadRule, name))
	}
	b.using[name] = true
	defer delete(b.using, name)

	t := b.e.tree
	g := t.New(KindGroup)
	t.Node(g).Origin = b.pos(tpl.Pos)
	if err := b.loadBlock(tpl.Block, g, style); err != nil {
		return NoNode, err
	}
	return g, nil
}

// loadVerses 将文本块转换为格式化脚本：字符串、br、para 与 span。
func (b *builder) loadVerses(block *dsl.Block, format *Format, verses []Verse) ([]Verse, error) {
	if block == nil {
		return verses, nil
	}
	for _, st := range block.Statements {
		switch {
		case st.Text != nil:
			verses = appendLiteral(verses, string(st.Text.Value), format)
		case st.Command != nil:
			cmd := st.Command
			positional, attrs := parseAttrs(cmd.Args)
			switch cmd.Name {
			case "br":
				verses = append(verses, Verse{Kind: VerseLineBreak})
				for _, s := range positional {
					verses = appendLiteral(verses, s, format)
				}
			case "para":
				verses = append(verses, Verse{Kind: VerseParagraph})
				for _, s := range positional {
					verses = appendLiteral(verses, s, format)
				}
			case "span":
				name := ""
				if len(positional) > 0 {
					name = positional[0]
				}
				st, err := b.e.styles.resolve(name, attrs)
				if err != nil {
					return nil, b.errorAt("span", cmd.Pos, err)
				}
				if verses, err = b.loadVerses(cmd.Block, st.Format(), verses); err != nil {
					return nil, err
				}
			default:
				return nil, b.errorAt(cmd.Name, cmd.Pos, fmt.Errorf("%w: 文本中不支持 %s", ErrUnsupportedKind, cmd.Name))
			}
		}
	}
	return verses, nil
}

// appendLiteral 拆分字符串：空行为段落标记，单个换行为换行标记。
func appendLiteral(verses []Verse, s string, format *Format) []Verse {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for i, para := range strings.Split(s, "\n\n") {
		if i > 0 {
			verses = append(verses, Verse{Kind: VerseParagraph})
		}
		for j, line := range strings.Split(para, "\n") {
			if j > 0 {
				verses = append(verses, Verse{Kind: VerseLineBreak})
			}
			if line != "" {
				verses = append(verses, Verse{Kind: VerseText, Text: line, Format: format})
			}
		}
	}
	return verses
}

func hasPageFields(verses []Verse) bool {
	for _, v := range verses {
		if strings.Contains(v.Text, "{page}") || strings.Contains(v.Text, "{pages}") {
			return true
		}
	}
	return false
}

// attrFlags 是不带值的属性。
var attrFlags = map[string]bool{
	"new-page": true, "keep-with-next": true, "merge": true, "numbered": true,
	"required": true, "chapter": true, "header": true, "underline": true,
}

// attrKeys 是带一个值的属性。
var attrKeys = map[string]bool{
	"id": true, "source": true, "when": true, "unless": true, "filter": true, "dynamic": true,
	"max-position": true, "min-lines": true, "header-rows": true, "columns": true,
	"bullet": true, "start": true, "empty": true, "span": true, "width": true, "height": true,
	"fit": true, "opacity": true, "caption": true, "gap": true, "thickness": true, "src": true,
}

// parseAttrs 把参数拆为位置参数与属性；属性名后紧跟它的值，标志属性记为 "true"。
func parseAttrs(args []*dsl.Lexeme) ([]string, map[string]string) {
	attrs := map[string]string{}
	var positional []string
	for i := 0; i < len(args); i++ {
		tok := args[i]
		key := tok.Value
		switch {
		case tok.Type == "Ident" && attrFlags[key]:
			attrs[key] = "true"
		case tok.Type == "Ident" && (attrKeys[key] || styleProps[key]) && i+1 < len(args):
			attrs[key] = args[i+1].Value
			i++
		default:
			positional = append(positional, tok.Value)
		}
	}
	return positional, attrs
}

// applyCommon 处理所有元素共有的属性：id、绑定、条件与分页规则。
func applyCommon(n *Node, attrs map[string]string) error {
	n.Name = attrs["id"]
	n.Source = attrs["source"]
	n.When = attrs["when"]
	n.Unless = attrs["unless"]
	n.Required = parseBool(attrs["required"])
	n.Chapter = parseBool(attrs["chapter"])
	if v := attrs["dynamic"]; v != "" {
		for _, expr := range strings.Split(v, ";") {
			if strings.TrimSpace(expr) == "" {
				continue
			}
			cond, err := ParseDynamic(expr)
			if err != nil {
				return err
			}
			n.Dynamic = append(n.Dynamic, cond)
		}
	}

	var rules PageBreakRules
	set := false
	if parseBool(attrs["new-page"]) {
		rules.NewPage, set = true, true
	}
	if parseBool(attrs["keep-with-next"]) {
		rules.KeepWithNext, set = true, true
	}
	if v := attrs["max-position"]; v != "" {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return fmt.Errorf("%w: max-position %q 不是数字", ErrBadRule, v)
		}
		if strings.HasSuffix(v, "%") {
			f /= 100
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("%w: max-position %q 应在 0 到 1 之间", ErrBadRule, v)
		}
		rules.MaxPosition, set = f, true
	}
	if v := attrs["min-lines"]; v != "" {
		ml, err := strconv.Atoi(v)
		if err != nil || ml < 0 {
			return fmt.Errorf("%w: min-lines %q 应为非负整数", ErrBadRule, v)
		}
		rules.MinLines, set = ml, true
	}
	if set {
		n.Rules = &rules
	}
	return nil
}

// bind 将模板子树绑定到 ref：先处理子孙，再判断自身的静态条件。
func (b *builder) bind(id NodeID, ref binding.Ref, fromString bool) error {
	t := b.e.tree
	n := t.Node(id)
	n.Content = ref
	n.FromString = fromString

	var err error
	switch n.Kind {
	case KindText:
		for i := range n.Text.Verses {
			if n.Text.Verses[i].Text, err = ref.Interpolate(n.Text.Verses[i].Text); err != nil {
				return designErr(n, err)
			}
		}
	case KindPicture:
		if n.Picture.Src, err = ref.Interpolate(n.Picture.Src); err != nil {
			return designErr(n, err)
		}
	}

	switch n.Kind {
	case KindList:
		err = b.bindList(id, ref, fromString)
	case KindPhotoTable:
		err = b.bindPhotos(id, ref)
	default:
		for _, c := range append([]NodeID(nil), n.Children...) {
			if err = b.expand(c, ref, fromString); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}

	ok, err := b.staticConditions(n, ref)
	if err != nil {
		return designErr(n, err)
	}
	if !ok {
		n.StaticOK = false
		t.Clear(id)
		n.SplitAt = n.units()
	}
	return nil
}

// expand 处理带 source 的模板节点：每个解析结果得到一份深拷贝（新的 tracking id，规则按值复制）。
func (b *builder) expand(id NodeID, ref binding.Ref, fromString bool) error {
	t := b.e.tree
	n := t.Node(id)
	if n.Source == "" || n.Kind == KindList || n.Kind == KindPhotoTable {
		return b.bind(id, ref, fromString)
	}
	refs, err := binding.Resolve(ref, n.Source)
	if err != nil {
		return designErr(n, err)
	}
	parent := n.Parent
	if len(refs) == 0 {
		if n.Required && b.e.opts.StrictMissingTargets {
			b.conflicts = append(b.conflicts, designErr(n, fmt.Errorf("%w: required 元素的 source %s 没有内容", ErrMissingTarget, n.Source)))
		}
		if parent != NoNode {
			t.RemoveChild(parent, id)
		}
		return nil
	}
	if parent == NoNode {
		return designErr(n, fmt.Errorf("%w: 顶层节点不能带 source", ErrBadRule))
	}
	copies := make([]NodeID, len(refs))
	copies[0] = id
	for i := 1; i < len(refs); i++ {
		copies[i] = t.DeepCopy(id)
		t.InsertChild(parent, n.Ordinal+i, copies[i])
	}
	for i, c := range copies {
		if err := b.bind(c, refs[i], false); err != nil {
			return err
		}
	}
	return nil
}

// staticConditions 求值 when/unless，并检查内容是否满足包含条件。
// when 为真而 unless 也为真、或 required 元素被排除，都记为冲突。
func (b *builder) staticConditions(n *Node, ref binding.Ref) (bool, error) {
	ok := true
	switch {
	case n.FromString, n.Source == "", n.Kind == KindList, n.Kind == KindPhotoTable:
	case !binding.Truthy(ref.Value):
		ok = false
	}
	whenMet := false
	if n.When != "" {
		v, err := b.eval(n.When, ref)
		if err != nil {
			return false, err
		}
		whenMet = v
		ok = ok && v
	}
	if n.Unless != "" {
		v, err := b.eval(n.Unless, ref)
		if err != nil {
			return false, err
		}
		if v {
			if whenMet {
				b.conflicts = append(b.conflicts, designErr(n, fmt.Errorf("%w: when %q 与 unless %q 同时成立", ErrConflict, n.When, n.Unless)))
			}
			ok = false
		}
	}
	if n.Required && !ok {
		b.conflicts = append(b.conflicts, designErr(n, fmt.Errorf("%w: required 元素被条件排除（%s）", ErrConflict, ref)))
	}
	return ok, nil
}

// eval 使用表达式求值器；未配置时把表达式当作内容路径判断。
func (b *builder) eval(expr string, ref binding.Ref) (bool, error) {
	if b.e.opts.Conditions != nil {
		return b.e.opts.Conditions.Eval(expr, ref)
	}
	return binding.Satisfied(ref, expr), nil
}

func collectTemplates(doc *dsl.Document) map[string]*dsl.TemplateSection {
	out := map[string]*dsl.TemplateSection{}
	for _, section := range doc.Sections {
		if section.Template != nil {
			out[section.Template.Name] = section.Template
		}
	}
	return out
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			switch stmt.Command.Name {
			case "font":
				font := parseFontResource(stmt.Command)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(stmt.Command)
				if name == "" || value == "" {
					continue
				}
				if c, err := parseColor(value); err == nil {
					res.Colors[name] = c
				}
			case "image":
				image := parseImageResource(stmt.Command)
				if image.Name != "" {
					res.Images[image.Name] = image
				}
			case "style":
				style := parseStyleResource(stmt.Command)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if len(res.Fonts) == 0 {
		res.Fonts["Body"] = FontResource{
			Name:      "Body",
			Src:       "builtin:regular",
			Base:      "regular",
			Family:    "Body",
			IsBuiltin: true,
		}
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles

	return res, nil
}

func collectMeta(doc *dsl.Document) DocumentMeta {
	meta := DocumentMeta{
		Creator: "Quire",
	}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			key := strings.ToLower(stmt.Assignment.Key)
			switch key {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
		Base:   cmd.Args[0].Value,
	}

	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			font.Src = val
			if strings.HasPrefix(font.Src, "builtin:") {
				font.IsBuiltin = true
				font.Base = strings.TrimPrefix(font.Src, "builtin:")
				if font.Base == "" {
					font.Base = "regular"
				}
			}
		case "style":
			font.Style = val
		case "fallback":
			font.Fallback = val
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) ImageResource {
	if len(cmd.Args) == 0 {
		return ImageResource{}
	}
	image := ImageResource{
		Name: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return image
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			image.Src = val
		case "width":
			image.Width = parseLength(val)
		case "height":
			image.Height = parseLength(val)
		case "dpi":
			if v, err := strconv.Atoi(val); err == nil {
				image.DPI = v
			}
		}
	}
	return image
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}

	if cmd.Block == nil {
		return style
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		if val == "" {
			continue
		}
		style.Props[stmt.Assignment.Key] = val
	}
	return style
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

func resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	base, ok := pagePresets[strings.ToUpper(spec.Size)]
	if !ok {
		return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
	}

	width := base[0]
	height := base[1]
	for _, token := range spec.Params {
		switch token.Value {
		case "landscape":
			width, height = height, width
		}
	}
	return width, height, nil
}

var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

func resolveMargin(params []*dsl.Lexeme) Margin {
	// 默认四边 20mm
	margin := Margin{Top: 20, Right: 20, Bottom: 20, Left: 20}
	for i := 0; i < len(params); i++ {
		if params[i].Value != "margin" {
			continue
		}
		// margin 后最多取 4 个数值，遇到非数值（例如 portrait）停止
		vals := []float64{}
		for j := i + 1; j < len(params) && len(vals) < 4; j++ {
			num := trimUnit(params[j].Value)
			if _, err := strconv.ParseFloat(num, 64); err != nil {
				break
			}
			vals = append(vals, parseLength(params[j].Value))
		}
		margin = marginFromValues(vals, margin)
	}
	return margin
}

func pageSections(doc *dsl.Document) []*dsl.PageSection {
	var out []*dsl.PageSection
	for _, section := range doc.Sections {
		if section.Page != nil {
			out = append(out, section.Page)
		}
	}
	return out
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
