package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	out    string
	err    error
	prompt Prompt
}

func (s *stubLLM) Complete(_ context.Context, p Prompt) (string, error) {
	s.prompt = p
	return s.out, s.err
}

type mapPhotos map[string]ResultPhoto

func (m mapPhotos) LookupPhoto(_ context.Context, id string) (ResultPhoto, bool) {
	p, ok := m[id]
	return p, ok
}

func TestNewAgent_RequiresLLM(t *testing.T) {
	_, err := NewAgent(nil)
	assert.Error(t, err)
}

func TestAgentGenerate(t *testing.T) {
	llm := &stubLLM{out: "# 开幕式隆重举行\n\n导语一段。\n\n![现场](PHOTO:7)\n\n![合影](PHOTO:8)\n\nPHOTO:9 PHOTO:7"}
	agent, err := NewAgent(llm, WithPhotoSource(mapPhotos{
		"7": {URL: "https://cdn/7.jpg", PhotographerName: "张三"},
	}))
	require.NoError(t, err)

	res, err := agent.Generate(context.Background(), GenerationRequest{
		Form: FormFields{EventName: "开幕式"},
		SelectedPhotos: []SelectedPhotoRef{
			{ID: "8", ThumbURL: "https://cdn/8-thumb.jpg", PhotographerName: "李四"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "开幕式隆重举行", res.Title)
	assert.Equal(t, "导语一段。", res.Subtitle)
	assert.NotContains(t, res.Markdown, "# 开幕式隆重举行")
	assert.Equal(t, []ResultPhoto{
		{ID: "7", URL: "https://cdn/7.jpg", PhotographerName: "张三"},
		{ID: "8", URL: "https://cdn/8-thumb.jpg", PhotographerName: "李四"},
	}, res.Photos)
	assert.Contains(t, llm.prompt.System, "PHOTO:8")
}

func TestAgentGenerate_LLMError(t *testing.T) {
	agent, err := NewAgent(&stubLLM{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = agent.Generate(context.Background(), GenerationRequest{})
	assert.EqualError(t, err, "boom")
}

func TestPostProcess(t *testing.T) {
	t.Run("empty output", func(t *testing.T) {
		_, err := PostProcess("  \n ", GenerationRequest{})
		assert.Error(t, err)
	})

	t.Run("no title falls back to event name", func(t *testing.T) {
		res, err := PostProcess("正文第一段。\n\n第二段。", GenerationRequest{Form: FormFields{EventName: "运动会"}})
		require.NoError(t, err)
		assert.Equal(t, "运动会", res.Title)
		assert.Equal(t, "正文第一段。", res.Subtitle)
	})

	t.Run("code fence is stripped", func(t *testing.T) {
		res, err := PostProcess("```markdown\n# 标题\n\n内容\n```", GenerationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "标题", res.Title)
		assert.Equal(t, "内容", res.Markdown)
	})
}

func TestMockLLM_InsertsPlaceholders(t *testing.T) {
	req := GenerationRequest{
		Form:           FormFields{EventName: "开幕式"},
		SelectedPhotos: []SelectedPhotoRef{{ID: "1"}, {ID: "2"}},
	}
	out, err := MockLLM{}.Complete(context.Background(), BuildNewsPrompt(req))
	require.NoError(t, err)
	assert.Contains(t, out, "# 开幕式顺利举行")
	assert.Contains(t, out, "![图1](PHOTO:1)")
	assert.Contains(t, out, "![图2](PHOTO:2)")
}
