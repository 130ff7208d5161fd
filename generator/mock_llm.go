package generator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var eventNameLine = regexp.MustCompile(`(?m)^活动名称：(.+)$`)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	title := "自动生成示例标题"
	if mm := eventNameLine.FindStringSubmatch(prompt.User); len(mm) == 2 {
		title = strings.TrimSpace(mm[1]) + "顺利举行"
	}

	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("这里是一段自动生成的导语，概述新闻要点。\n\n")
	sb.WriteString("## 活动现场\n\n")
	// 把系统提示里列出的照片逐一插入正文。
	for i, id := range photoIDPattern.FindAllStringSubmatch(prompt.System, -1) {
		sb.WriteString(fmt.Sprintf("![图%d](PHOTO:%s)\n\n", i+1, id[1]))
	}
	sb.WriteString("根据提示生成的内容：\n\n")
	sb.WriteString("```\n")
	sb.WriteString(strings.TrimSpace(strings.TrimSuffix(prompt.User, PromptInstruction)))
	sb.WriteString("\n```\n")
	return sb.String(), nil
}
