package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssemblePrompt_Scenario(t *testing.T) {
	out := AssemblePrompt(GenerationRequest{
		Form: FormFields{EventName: "开幕式", Highlights: "many"},
	})

	assert.Contains(t, out, "活动名称：开幕式")
	assert.Contains(t, out, "活动亮点：many")
	assert.NotContains(t, out, "已选照片")
	assert.NotContains(t, out, "活动地点")
	assert.True(t, strings.HasSuffix(out, PromptInstruction))
}

func TestAssemblePrompt_Deterministic(t *testing.T) {
	req := GenerationRequest{
		Form: FormFields{EventName: "校庆", Location: "礼堂", Tone: "正式"},
		SelectedPhotos: []SelectedPhotoRef{
			{ID: "1", Description: "大会开幕式", Tags: []string{"开幕", "大合照"}},
			{ID: "2", Description: "领导致辞"},
		},
		ReferenceArticle: "参考稿",
		InterviewText:    "采访记录",
	}
	assert.Equal(t, AssemblePrompt(req), AssemblePrompt(req))

	out := AssemblePrompt(req)
	assert.Contains(t, out, "已选照片：\n  图1：大会开幕式 开幕, 大合照\n  图2：领导致辞")
	assert.Contains(t, out, "参考文章内容：\n参考稿")
	assert.Contains(t, out, "采访原文：\n采访记录")

	idxRef := strings.Index(out, "参考文章内容")
	idxPhotos := strings.Index(out, "已选照片")
	idxInterview := strings.Index(out, "采访原文")
	assert.Less(t, idxPhotos, idxRef)
	assert.Less(t, idxRef, idxInterview)
}

func TestAssemblePrompt_OmissionRemovesOnlyThatLine(t *testing.T) {
	full := GenerationRequest{Form: FormFields{
		EventName:    "运动会",
		EventDate:    "2024-05-01",
		Location:     "操场",
		Organizer:    "体育部",
		Participants: "全体师生",
		Highlights:   "破纪录",
		Usage:        "官网新闻",
		Tone:         "正式",
		TargetWords:  "500-800",
		StylePreset:  "默认风格",
	}}
	fullLines := strings.Split(AssemblePrompt(full), "\n")

	without := full
	without.Form.Location = ""
	gotLines := strings.Split(AssemblePrompt(without), "\n")

	var want []string
	for _, l := range fullLines {
		if l == "活动地点：操场" {
			continue
		}
		want = append(want, l)
	}
	// 去掉一行后，分隔该行的空行也一起消失。
	assert.Equal(t, len(fullLines)-2, len(gotLines))
	assert.Equal(t, compact(want), compact(gotLines))
}

func compact(lines []string) []string {
	var out []string
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestBuildNewsPrompt(t *testing.T) {
	t.Run("uses assembled prompt", func(t *testing.T) {
		req := GenerationRequest{
			Form:           FormFields{EventName: "开幕式"},
			SelectedPhotos: []SelectedPhotoRef{{ID: "p-7"}},
		}
		p := BuildNewsPrompt(req)
		assert.Equal(t, AssemblePrompt(req), p.User)
		assert.Contains(t, p.System, "图1 → PHOTO:p-7")
	})

	t.Run("override prompt wins", func(t *testing.T) {
		p := BuildNewsPrompt(GenerationRequest{
			Form:       FormFields{EventName: "开幕式"},
			FullPrompt: "自定义提示词",
		})
		assert.Equal(t, "自定义提示词", p.User)
	})
}

func TestNewSubmitRequest(t *testing.T) {
	req := GenerationRequest{
		Form: FormFields{EventName: "开幕式"},
		SelectedPhotos: []SelectedPhotoRef{
			{ID: "1", ThumbURL: "https://cdn/t1.jpg", Tags: []string{"a"}},
			{ID: "2", URL: "https://cdn/2.jpg"},
			{ID: "3"},
		},
	}
	sub := NewSubmitRequest(req)
	if assert.NotNil(t, sub.Form) {
		assert.Equal(t, "开幕式", sub.Form.EventName)
	}
	assert.Empty(t, sub.FullPrompt)
	assert.Equal(t, map[string]string{"1": "https://cdn/t1.jpg", "2": "https://cdn/2.jpg"}, sub.ClientPhotoMap)

	sub.SelectedPhotos[0].Tags[0] = "changed"
	assert.Equal(t, "a", req.SelectedPhotos[0].Tags[0])

	override := NewSubmitRequest(GenerationRequest{FullPrompt: "x"})
	assert.Nil(t, override.Form)
	assert.Equal(t, "x", override.FullPrompt)
	assert.Equal(t, "x", override.Request().FullPrompt)
}

func TestSubmitRequestRequest_MergesClientPhotoMap(t *testing.T) {
	sub := SubmitRequest{
		Form:           &FormFields{EventName: "开幕式"},
		SelectedPhotos: []SelectedPhotoRef{{ID: "1"}, {ID: "2", URL: "https://cdn/2.jpg"}},
		ClientPhotoMap: map[string]string{"1": "https://t/1.jpg", "2": "https://t/2.jpg", "9": "https://t/9.jpg", "5": "https://t/5.jpg"},
	}
	req := sub.Request()

	assert.Equal(t, "开幕式", req.Form.EventName)
	assert.Equal(t, []SelectedPhotoRef{
		{ID: "1", ThumbURL: "https://t/1.jpg"},
		{ID: "2", URL: "https://cdn/2.jpg"},
		{ID: "5", ThumbURL: "https://t/5.jpg"},
		{ID: "9", ThumbURL: "https://t/9.jpg"},
	}, req.SelectedPhotos)
	assert.Empty(t, sub.SelectedPhotos[0].ThumbURL)
}

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		raw      string
		want     JobStatus
		terminal bool
	}{
		{"submitted", JobSubmitted, false},
		{"queued", JobSubmitted, false},
		{"RUNNING", JobProcessing, false},
		{"processing", JobProcessing, false},
		{"succeeded", JobSucceeded, true},
		{"failed", JobFailed, true},
		{"canceled", JobCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseJobStatus(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.terminal, got.IsTerminal())
		})
	}

	_, ok := ParseJobStatus("weird")
	assert.False(t, ok)
}
