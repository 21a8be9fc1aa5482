package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// paginate 反复评估、拆分页面树，返回每一页的根节点。offset 是之前各页面序列已产生的页数。
func (e *engine) paginate(root NodeID, offset int) ([]NodeID, error) {
	body := e.tree.Node(root).Page.Body
	var pages []NodeID
	cur := root
	for cur != NoNode {
		if offset+len(pages) >= e.opts.MaxPages {
			return nil, fmt.Errorf("%w: 超过 %d 页", ErrTooManyPages, e.opts.MaxPages)
		}
		if e.tree.Node(cur).Continuation {
			e.collapseLeading(cur)
		}
		e.redraft(cur, body.Top)

		d := e.assess(cur, body)
		if d == NewPage {
			// 页首的 new-page 已经满足，解除后重新评估，避免产生空白页
			continue
		}
		if d == Overflow {
			if !e.bump(cur, body) {
				e.tracef("page %d: content taller than body, accepting oversized page", offset+len(pages)+1)
				d = ThisPage
			} else {
				d = Split
			}
		}

		next := NoNode
		if d == Split {
			next = e.pageBreak(cur)
			e.redraft(cur, body.Top)
		}
		e.tracef("page %d: %s, continuation %v", offset+len(pages)+1, d, next != NoNode)
		if e.opts.Debug.Verify {
			if err := e.tree.Verify(cur); err != nil {
				panic(err)
			}
		}
		pages = append(pages, cur)
		cur = next
	}
	return pages, nil
}

// collapseLeading 折叠续页页首的 space，直到遇到第一个有内容的节点。
func (e *engine) collapseLeading(id NodeID) bool {
	n := e.tree.Node(id)
	if n.hidden() {
		return false
	}
	switch {
	case n.Kind == KindSpace:
		n.Space.Collapsed = true
		return false
	case n.Kind == KindText:
		return len(n.Text.Lines) > 0
	case n.Kind.leaf(), n.Kind.horizontal():
		return true
	}
	for _, c := range n.Children {
		if e.collapseLeading(c) {
			return true
		}
	}
	return false
}

// decorate 为一页生成页眉与页脚：复制模板、替换页码后在对应的盒子里排版。
func (e *engine) decorate(id NodeID, number, total int, header, footer NodeID) error {
	p := e.tree.Node(id).Page
	p.Number = number
	var err error
	if p.Header, err = e.instance(header, p.HeaderBox, number, total); err != nil {
		return err
	}
	if p.Footer, err = e.instance(footer, p.FooterBox, number, total); err != nil {
		return err
	}
	return nil
}

func (e *engine) instance(tpl NodeID, box Rect, number, total int) (NodeID, error) {
	if tpl == NoNode || box.IsZeroHeight() {
		return NoNode, nil
	}
	id := e.tree.DeepCopy(tpl)
	fields := strings.NewReplacer("{page}", strconv.Itoa(number), "{pages}", strconv.Itoa(total))
	e.tree.Walk(id, func(n *Node) bool {
		if n.Kind == KindText && n.Text.PageFields {
			for i := range n.Text.Verses {
				n.Text.Verses[i].Text = fields.Replace(n.Text.Verses[i].Text)
			}
		}
		return true
	})
	if err := e.draft(id, box.Left, box.Right, box.Top); err != nil {
		return NoNode, err
	}
	return id, nil
}
