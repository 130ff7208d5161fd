package generator

import (
	"errors"
	"regexp"
	"strings"
)

var titlePattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// PostProcess 把模型输出拆成标题、导语和正文。
func PostProcess(raw string, req GenerationRequest) (GenerationResult, error) {
	md := strings.TrimSpace(raw)
	md = stripCodeFence(md)
	if md == "" {
		return GenerationResult{}, errors.New("model returned empty markdown")
	}

	title, body := splitTitle(md)
	if title == "" {
		title = strings.TrimSpace(req.Form.EventName)
	}

	return GenerationResult{
		Title:    title,
		Subtitle: extractDigest(body),
		Markdown: body,
	}, nil
}

// splitTitle 取第一个一级标题作为标题，并从正文中移除该行。
func splitTitle(md string) (string, string) {
	loc := titlePattern.FindStringSubmatchIndex(md)
	if loc == nil {
		return "", md
	}
	title := strings.TrimSpace(md[loc[2]:loc[3]])
	body := strings.TrimSpace(md[:loc[0]] + md[loc[1]:])
	return title, body
}

// 导语取首段（跳过标题、图片行）。
func extractDigest(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "![") {
			continue
		}
		return defaultDigest(line, 120)
	}
	return ""
}

func defaultDigest(text string, limit int) string {
	joined := strings.Join(strings.Fields(text), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}

// 模型偶尔会把整篇稿件包进 ```markdown 代码块。
func stripCodeFence(md string) string {
	if !strings.HasPrefix(md, "```") {
		return md
	}
	nl := strings.IndexByte(md, '\n')
	if nl < 0 {
		return ""
	}
	inner := md[nl+1:]
	inner = strings.TrimSuffix(strings.TrimSpace(inner), "```")
	return strings.TrimSpace(inner)
}
