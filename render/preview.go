package render

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 图注来源于相邻文字时，超过这个长度就不当作图注。
const maxAdjacentCaption = 200

var captionClass = regexp.MustCompile(`(?i)caption`)

// FormatPreview makes sanitized hypertext reading-friendly: responsive images
// wrapped in captioned figures, and spacing for headings and paragraphs. Only
// presentation attributes and figure wrapping change. On failure the input is
// returned as is.
func FormatPreview(fragment string) (out string) {
	defer func() {
		if recover() != nil {
			out = fragment
		}
	}()

	root, err := parseFragment(fragment)
	if err != nil {
		return fragment
	}

	imgs := elements(root, "img")
	for _, img := range imgs {
		updateStyle(img, func(st *style) {
			st.set("max-width", "100%")
			st.set("height", "auto")
			st.set("display", "block")
			st.setDefault("margin", "12px auto")
		})
	}
	for _, img := range imgs {
		wrapFigure(img)
	}

	for _, h := range elements(root, "h1", "h2", "h3") {
		updateStyle(h, func(st *style) {
			st.set("line-height", "1.35")
			st.set("margin-top", "6px")
			st.set("margin-bottom", "12px")
			st.set("white-space", "normal")
			st.set("word-break", "break-word")
			st.set("display", "block")
		})
	}
	for _, p := range elements(root, "p") {
		updateStyle(p, func(st *style) {
			st.setDefault("margin-top", "6px")
			st.setDefault("margin-bottom", "10px")
		})
	}

	rendered, err := renderChildren(root)
	if err != nil {
		return fragment
	}
	return rendered
}

// wrapFigure puts img into a <figure> with a caption. A broken image is left
// where it is.
func wrapFigure(img *html.Node) {
	defer func() { _ = recover() }()

	if img.Parent == nil || hasAncestor(img, "figure") {
		return
	}
	fig := &html.Node{Type: html.ElementNode, Data: "figure", DataAtom: atom.Figure}
	updateStyle(fig, func(st *style) {
		st.set("margin", "12px auto")
		st.set("max-width", "100%")
		st.set("text-align", "center")
	})
	img.Parent.InsertBefore(fig, img)
	img.Parent.RemoveChild(img)
	fig.AppendChild(img)

	caption := strings.TrimSpace(attrOrEmpty(img, "data-caption"))
	if caption == "" {
		caption = strings.TrimSpace(attrOrEmpty(img, "alt"))
	}
	if caption == "" {
		caption = takeAdjacentText(fig)
	}
	if caption == "" {
		caption = takeCaptionElement(fig)
	}
	if caption == "" {
		return
	}

	figcap := &html.Node{Type: html.ElementNode, Data: "figcaption", DataAtom: atom.Figcaption}
	figcap.AppendChild(&html.Node{Type: html.TextNode, Data: caption})
	updateStyle(figcap, func(st *style) {
		st.set("font-size", "13px")
		st.set("color", "#666")
		st.set("margin-top", "6px")
		st.set("text-align", "center")
	})
	fig.AppendChild(figcap)
}

func attrOrEmpty(n *html.Node, key string) string {
	v, _ := getAttr(n, key)
	return v
}

func takeAdjacentText(fig *html.Node) string {
	next := fig.NextSibling
	if next == nil || next.Type != html.TextNode {
		return ""
	}
	t := strings.TrimSpace(next.Data)
	if t == "" || utf8.RuneCountInString(t) >= maxAdjacentCaption {
		return ""
	}
	next.Parent.RemoveChild(next)
	return t
}

func takeCaptionElement(fig *html.Node) string {
	el := nextElement(fig)
	if el == nil {
		return ""
	}
	class, _ := getAttr(el, "class")
	if el.Data != "em" && el.Data != "small" && !captionClass.MatchString(class) {
		return ""
	}
	t := strings.TrimSpace(textContent(el))
	el.Parent.RemoveChild(el)
	return t
}
