package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseFragment parses s as the content of a <body> and returns a detached
// container node holding the parsed children.
func parseFragment(s string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

// renderChildren serializes the children of root.
func renderChildren(root *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// walk visits every element below root in document order. The next sibling is
// read before fn runs so fn may detach the current node.
func walk(root *html.Node, fn func(*html.Node)) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			fn(c)
		}
		if c.Parent != nil {
			walk(c, fn)
		}
		c = next
	}
}

// elements collects elements matching one of tags, in document order.
func elements(root *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		for _, t := range tags {
			if n.Data == t {
				out = append(out, n)
				return
			}
		}
	})
	return out
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttrs(n *html.Node, drop func(html.Attribute) bool) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !drop(a) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// prevElement returns the previous element sibling, skipping text and
// comments.
func prevElement(n *html.Node) *html.Node {
	for p := n.PrevSibling; p != nil; p = p.PrevSibling {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// nextElement returns the next element sibling, skipping any text.
func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func hasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

// style is an ordered view of an inline style attribute.
type style struct {
	keys []string
	vals map[string]string
}

func parseStyle(raw string) *style {
	st := &style{vals: make(map[string]string)}
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" {
			continue
		}
		if _, seen := st.vals[k]; !seen {
			st.keys = append(st.keys, k)
		}
		st.vals[k] = v
	}
	return st
}

func (st *style) has(k string) bool {
	return st.vals[k] != ""
}

func (st *style) set(k, v string) {
	if _, seen := st.vals[k]; !seen {
		st.keys = append(st.keys, k)
	}
	st.vals[k] = v
}

func (st *style) setDefault(k, v string) {
	if !st.has(k) {
		st.set(k, v)
	}
}

func (st *style) String() string {
	parts := make([]string, 0, len(st.keys))
	for _, k := range st.keys {
		parts = append(parts, k+":"+st.vals[k])
	}
	return strings.Join(parts, ";")
}

// updateStyle edits n's inline style in place.
func updateStyle(n *html.Node, fn func(*style)) {
	raw, _ := getAttr(n, "style")
	st := parseStyle(raw)
	fn(st)
	setAttr(n, "style", st.String())
}
