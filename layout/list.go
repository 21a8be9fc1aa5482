package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/quire/binding"
)

// bindList 为列表生成子节点：有 source 时每个内容对象生成一份模板的深拷贝，
// 否则模板中的每个元素各成一项。嵌套的 merge 列表会被展平，最后每个子节点包进列表项。
func (b *builder) bindList(id NodeID, ref binding.Ref, fromString bool) error {
	t := b.e.tree
	n := t.Node(id)

	if n.Source == "" {
		for _, c := range append([]NodeID(nil), n.Children...) {
			if err := b.expand(c, ref, fromString); err != nil {
				return err
			}
		}
		return b.wrapItems(id)
	}

	templates := append([]NodeID(nil), n.Children...)
	t.Clear(id)
	refs, err := binding.Resolve(ref, n.Source)
	if err != nil {
		return designErr(n, err)
	}
	for _, r := range refs {
		if !binding.Truthy(r.Value) {
			continue
		}
		if n.List.Filter != "" {
			keep, err := b.eval(n.List.Filter, r)
			if err != nil {
				return designErr(n, err)
			}
			if !keep {
				b.e.tracef("%v: filter drops %s", n, r)
				continue
			}
		}
		var c NodeID
		switch len(templates) {
		case 0:
			continue
		case 1:
			c = t.DeepCopy(templates[0])
		default:
			c = t.New(KindGroup)
			t.Node(c).Origin = n.Origin
			for _, tpl := range templates {
				t.AddChild(c, t.DeepCopy(tpl))
			}
		}
		t.AddChild(id, c)
		if err := b.expand(c, r, false); err != nil {
			return err
		}
	}
	return b.wrapItems(id)
}

// wrapItems 展平 merge 列表并把每个子节点包进列表项。
func (b *builder) wrapItems(id NodeID) error {
	t := b.e.tree
	n := t.Node(id)
	for i := 0; i < len(n.Children); i++ {
		c := t.Node(n.Children[i])
		if c.Kind != KindList || !c.List.Merge {
			continue
		}
		nested := append([]NodeID(nil), c.Children...)
		t.RemoveChild(id, c.ID)
		if c.hidden() {
			i--
			continue
		}
		for k, item := range nested {
			t.InsertChild(id, i+k, item)
		}
		i += len(nested) - 1
	}

	for i, c := range append([]NodeID(nil), n.Children...) {
		cn := t.Node(c)
		if cn.Kind == KindListItem {
			continue
		}
		item := t.New(KindListItem)
		in := t.Node(item)
		in.Origin = cn.Origin
		in.Content = cn.Content
		in.FromString = cn.FromString
		t.InsertChild(id, i, item)
		t.AddChild(item, c)
	}
	b.e.renumber(id)
	return nil
}

// cleanupLists 在动态条件求值之后整理所有列表：移除空项，列表为空时换上占位项，最后重新编号。
func (b *builder) cleanupLists(id NodeID) error {
	t := b.e.tree
	n := t.Node(id)
	if n.hidden() {
		return nil
	}
	for _, c := range append([]NodeID(nil), n.Children...) {
		if err := b.cleanupLists(c); err != nil {
			return err
		}
	}
	if n.Kind != KindList {
		return nil
	}

	for _, c := range append([]NodeID(nil), n.Children...) {
		cn := t.Node(c)
		if cn.Kind == KindListItem && !cn.Item.Placeholder && b.e.isEmpty(c) {
			b.e.tracef("%v: drop empty item %v", n, cn)
			t.RemoveChild(id, c)
		}
	}
	if len(n.Children) == 0 && n.List.WhenEmpty != NoNode {
		if err := b.placeholder(id); err != nil {
			return err
		}
	}
	b.e.renumber(id)
	return nil
}

// placeholder 用 when-empty 模板的深拷贝作为唯一的列表项。
func (b *builder) placeholder(id NodeID) error {
	t := b.e.tree
	n := t.Node(id)
	cp := t.DeepCopy(n.List.WhenEmpty)
	item := t.New(KindListItem)
	t.Node(item).Item.Placeholder = true
	t.Node(item).Origin = n.Origin
	t.AddChild(id, item)
	t.AddChild(item, cp)

	before := len(b.conflicts)
	if err := b.bind(item, n.Content, n.FromString); err != nil {
		return err
	}
	if len(b.conflicts) > before {
		return b.conflicts[before]
	}
	if err := b.e.applyDynamic(item); err != nil {
		return err
	}
	return b.cleanupLists(cp)
}

// renumber 按顺序为列表项设置编号或项目符号。占位项没有编号；
// 拆分产生的续项不占编号，它的编号已经在上一页显示过。
func (e *engine) renumber(id NodeID) {
	n := e.tree.Node(id)
	l := n.List
	number := l.Start
	for _, c := range n.Children {
		cn := e.tree.Node(c)
		if cn.Kind != KindListItem {
			continue
		}
		switch {
		case cn.Item.Placeholder:
			cn.Item.Marker, cn.Item.Number = "", 0
		case cn.Continuation:
		case l.Numbered:
			cn.Item.Number = number
			cn.Item.Marker = fmt.Sprintf("%d.", number)
			number++
		default:
			cn.Item.Number = number
			cn.Item.Marker = l.Bullet
			number++
		}
	}
}

// bindPhotos 为照片表生成照片：有 source 时每个内容对象一张照片，否则使用块中声明的图片；
// 照片按列数分组成行。
func (b *builder) bindPhotos(id NodeID, ref binding.Ref) error {
	t := b.e.tree
	n := t.Node(id)
	st := n.Style
	if st == nil {
		var err error
		if st, err = b.e.styles.resolve("", nil); err != nil {
			return designErr(n, err)
		}
	}

	var photos []NodeID
	if n.Source != "" {
		t.Clear(id)
		refs, err := binding.Resolve(ref, n.Source)
		if err != nil {
			return designErr(n, err)
		}
		for _, r := range refs {
			src := photoSource(r.Value)
			if src == "" {
				continue
			}
			photo, err := b.newPhoto(n, src, r, st)
			if err != nil {
				return err
			}
			photos = append(photos, photo)
		}
	} else {
		children := append([]NodeID(nil), n.Children...)
		t.Clear(id)
		for _, c := range children {
			cn := t.Node(c)
			if cn.Kind != KindPicture {
				return designErr(cn, fmt.Errorf("%w: 照片表只能包含 picture", ErrUnsupportedKind))
			}
			src, err := ref.Interpolate(cn.Picture.Src)
			if err != nil {
				return designErr(cn, err)
			}
			photo, err := b.newPhoto(n, src, ref, st)
			if err != nil {
				return err
			}
			photos = append(photos, photo)
		}
	}

	cols := max(n.Photos.Columns, 1)
	for start := 0; start < len(photos); start += cols {
		row := t.New(KindPhotoRow)
		t.Node(row).Origin = n.Origin
		t.Node(row).Content = ref
		t.AddChild(id, row)
		for _, p := range photos[start:min(start+cols, len(photos))] {
			t.AddChild(row, p)
		}
	}
	return nil
}

func (b *builder) newPhoto(table *Node, src string, ref binding.Ref, st *ResolvedStyle) (NodeID, error) {
	t := b.e.tree
	photo := t.New(KindPhoto)
	pn := t.Node(photo)
	pn.Origin = table.Origin
	pn.Content = ref

	pic := t.New(KindPicture)
	t.Node(pic).Picture.Src = src
	t.Node(pic).Content = ref
	t.AddChild(photo, pic)

	caption, err := ref.Interpolate(table.Photos.Caption)
	if err != nil {
		return NoNode, designErr(table, err)
	}
	if caption = strings.TrimSpace(caption); caption != "" && !strings.Contains(caption, "${") {
		text := t.New(KindText)
		tn := t.Node(text)
		tn.Style = st
		tn.Content = ref
		tn.Text.Verses = appendLiteral(nil, caption, nil)
		t.AddChild(photo, text)
	}
	return photo, nil
}

// photoSource 从内容对象中取图片地址：字符串本身，或对象的 src/path/image/url 字段。
func photoSource(v any) string {
	switch c := v.(type) {
	case string:
		return strings.TrimSpace(c)
	case map[string]any:
		for _, key := range []string{"src", "path", "image", "url"} {
			if s, ok := c[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
