package render

import (
	"net/url"
	"regexp"
	"strings"
)

// 行首需要剔除的不可见字符：BOM、零宽字符、方向控制符。
const invisibleChars = "\ufeff\u200b\u200c\u200d\u200e\u200f\u2060\u202a\u202b\u202c\u202d\u202e\u2066\u2067\u2068\u2069"

var (
	spaceReplacer   = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u3000", " ", "\uff03", "#")
	headingNoSpace  = regexp.MustCompile(`(?m)^(#{1,6})([^\s#])`)
	nestedImage     = regexp.MustCompile(`!\[([^\]]*)\]\(\s*!\[([^\]]*)\]\(\s*(https?://[^\s)]+)\s*\)\s*\)`)
	encodedImage    = regexp.MustCompile(`!\[([^\]]*)\]\(\s*(%21%5[Bb][^\s)]*)\s*\)`)
	markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(\s*(https?://[^\s)]+)\s*\)`)
)

// NormalizeMarkdown cleans raw draft text so headings render: invisible leading
// characters are dropped, odd spaces and the fullwidth hash are folded to ASCII,
// and "#标题" becomes "# 标题". Line count and order are preserved and the
// function is idempotent.
func NormalizeMarkdown(md string) string {
	if md == "" {
		return md
	}
	s := spaceReplacer.Replace(md)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, invisibleChars)
	}
	s = strings.Join(lines, "\n")

	return headingNoSpace.ReplaceAllString(s, "$1 $2")
}

// FixNestedImages collapses image syntax that the model nested inside another
// image, e.g. ![外](![内](https://x/a.jpg)), into ![外](https://x/a.jpg).
// The inner part may also arrive percent-encoded.
func FixNestedImages(md string) string {
	if md == "" {
		return md
	}
	md = nestedImage.ReplaceAllStringFunc(md, func(full string) string {
		m := nestedImage.FindStringSubmatch(full)
		return "![" + pickAlt(m[1], m[2]) + "](" + m[3] + ")"
	})
	return encodedImage.ReplaceAllStringFunc(md, func(full string) string {
		m := encodedImage.FindStringSubmatch(full)
		decoded, err := url.PathUnescape(m[2])
		if err != nil {
			return full
		}
		inner := markdownImageRe.FindStringSubmatch(decoded)
		if inner == nil {
			return full
		}
		return "![" + pickAlt(m[1], inner[1]) + "](" + inner[2] + ")"
	})
}

// 优先外层图注。
func pickAlt(outer, inner string) string {
	if alt := strings.TrimSpace(outer); alt != "" {
		return alt
	}
	return strings.TrimSpace(inner)
}
