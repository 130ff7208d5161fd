package render

import (
	"fmt"
	"regexp"
	"strings"
)

// WeChat 会弱化部分列表和标题标签，导致有序列表合并、标题样式丢失。
// 粘贴到公众号编辑器前把列表展开、把标题转成带字号的段落。

var (
	olBlock   = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulBlock   = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	listItem  = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	headingEl = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
)

var headingSizes = map[string]string{
	"1": "24px",
	"2": "22px",
	"3": "20px",
	"4": "18px",
	"5": "16px",
	"6": "15px",
}

// ForWeChat rewrites sanitized hypertext into the subset the WeChat article
// editor keeps when pasted.
func ForWeChat(h string) string {
	h = headingsAsParagraphs(h)
	h = flattenLists(h)
	return h
}

func flattenLists(h string) string {
	h = olBlock.ReplaceAllStringFunc(h, func(block string) string {
		items := listItem.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})

	return ulBlock.ReplaceAllStringFunc(h, func(block string) string {
		items := listItem.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			b.WriteString("<p>• ")
			b.WriteString(strings.TrimSpace(item[1]))
			b.WriteString("</p>")
		}
		return b.String()
	})
}

func headingsAsParagraphs(h string) string {
	return headingEl.ReplaceAllStringFunc(h, func(block string) string {
		parts := headingEl.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := headingSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, strings.TrimSpace(parts[2]))
	})
}
