package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

// PromptInstruction 是提示词末尾的固定输出约定。
const PromptInstruction = "请根据以上信息生成一篇新闻稿，保持所选文风与目标字数范围，并在需要处插入图片占位符，例如：![图注](PHOTO:123)。"

type promptField struct {
	label string
	value func(FormFields) string
}

var promptFields = []promptField{
	{"活动名称", func(f FormFields) string { return f.EventName }},
	{"活动日期", func(f FormFields) string { return f.EventDate }},
	{"活动地点", func(f FormFields) string { return f.Location }},
	{"主办/承办", func(f FormFields) string { return f.Organizer }},
	{"出席/参与", func(f FormFields) string { return f.Participants }},
	{"活动亮点", func(f FormFields) string { return f.Highlights }},
	{"稿件用途", func(f FormFields) string { return f.Usage }},
	{"文风偏好", func(f FormFields) string { return f.Tone }},
	{"目标字数", func(f FormFields) string { return f.TargetWords }},
	{"组织风格预设", func(f FormFields) string { return f.StylePreset }},
}

// AssemblePrompt serializes the request into one textual prompt. Blank fields are
// omitted; the output depends only on the request.
func AssemblePrompt(req GenerationRequest) string {
	var parts []string
	for _, f := range promptFields {
		v := strings.TrimSpace(f.value(req.Form))
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s：%s", f.label, v))
	}

	if len(req.SelectedPhotos) > 0 {
		lines := []string{"已选照片："}
		for i, p := range req.SelectedPhotos {
			desc := strings.TrimSpace(p.Description + " " + strings.Join(p.Tags, ", "))
			lines = append(lines, fmt.Sprintf("  图%d：%s", i+1, desc))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	if strings.TrimSpace(req.ReferenceArticle) != "" {
		parts = append(parts, "参考文章内容：\n"+req.ReferenceArticle)
	}
	if strings.TrimSpace(req.InterviewText) != "" {
		parts = append(parts, "采访原文：\n"+req.InterviewText)
	}
	parts = append(parts, PromptInstruction)
	return strings.Join(parts, "\n\n")
}

// BuildNewsPrompt 生成发送给模型的新闻稿提示词。
func BuildNewsPrompt(req GenerationRequest) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名专业的新闻稿撰写编辑，请直接输出 Markdown，不要额外解释。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 第一行使用一级标题作为新闻标题。\n")
	sb.WriteString("- 标题后给出一段导语，概述新闻要点。\n")
	sb.WriteString("- 插图只能使用 ![图注](PHOTO:<id>) 形式的占位符，不要编造图片链接。\n")
	if len(req.SelectedPhotos) > 0 {
		sb.WriteString("- 可用照片占位符：\n")
		for i, p := range req.SelectedPhotos {
			sb.WriteString(fmt.Sprintf("  图%d → PHOTO:%s\n", i+1, p.ID))
		}
	}

	user := req.FullPrompt
	if strings.TrimSpace(user) == "" {
		user = AssemblePrompt(req)
	}

	return Prompt{
		System: sb.String(),
		User:   user,
	}
}
