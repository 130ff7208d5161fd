package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ai_news_writer/generator"
)

func TestPipelineProcess_MarkdownOnly(t *testing.T) {
	p := NewPipeline(nil, nil, nil)
	res := generator.GenerationResult{
		Title:    " 开幕式顺利举行 ",
		Markdown: "＃小节\n\n![x](PHOTO:7)\n\nPHOTO:99",
		Photos:   []generator.ResultPhoto{{ID: "7", URL: "https://cdn/x.jpg"}},
	}

	d := p.Process(context.Background(), res, nil)

	assert.Equal(t, "开幕式顺利举行", d.Title)
	assert.Equal(t, "# 小节\n\n![x](https://cdn/x.jpg)\n\n!["+MissingImageAlt+"]("+MissingImageURL+")", d.Markdown)
	assert.Contains(t, d.HTML, "<h1>小节</h1>")
	assert.Contains(t, d.HTML, `<img src="https://cdn/x.jpg" alt="x"/>`)
	assert.Contains(t, d.HTML, `src="data:image/svg+xml`)
	assert.Contains(t, d.HTML, `alt="`+MissingImageAlt+`"`)
	assert.NotContains(t, d.HTML, "PHOTO:")
	assert.Equal(t, []string{"99"}, d.Missing)
}

func TestPipelineProcess_ServerHTML(t *testing.T) {
	p := NewPipeline(nil, nil, nil)
	res := generator.GenerationResult{
		HTML: `<p onclick="x()">PHOTO:7</p><script>steal()</script>`,
	}
	sel := []generator.SelectedPhotoRef{{ID: "7", ThumbURL: "https://cdn/7-thumb.jpg"}}

	d := p.Process(context.Background(), res, sel)

	assert.Equal(t, `<p><img src="https://cdn/7-thumb.jpg" alt="图7" loading="lazy"/></p>`, d.HTML)
	assert.Empty(t, d.Markdown)
	assert.Empty(t, d.Missing)
}

func TestPipelinePreviewAndCopy(t *testing.T) {
	p := NewPipeline(nil, nil, nil)
	d := p.Process(context.Background(), generator.GenerationResult{
		Markdown: "导语\n\n![现场](https://cdn/a.jpg)",
	}, nil)

	preview := p.Preview(d)
	assert.Contains(t, preview, "<figure")
	assert.Contains(t, preview, ">现场</figcaption>")
	assert.Equal(t, d.HTML, p.CopyHTML(d))

	mdOnly := ResolvedDraft{Markdown: "第一段\n\n第二段 <b>"}
	assert.Equal(t, "<p>第一段</p><p>第二段 &lt;b&gt;</p>", p.CopyHTML(mdOnly))
}

func TestMarkdownToHTML(t *testing.T) {
	out, err := MarkdownToHTML("| a | b |\n|---|---|\n| 1 | 2 |\n\n~~删~~")
	assert.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<del>删</del>")
}

func TestForWeChat(t *testing.T) {
	in := "<h2>标题</h2><ol><li>甲</li><li> 乙 </li></ol><ul><li>丙</li></ul>"
	want := `<p style="font-size:22px;font-weight:700;margin:1em 0 0.6em;">标题</p>` +
		"<p>1. 甲</p><p>2. 乙</p><p>• 丙</p>"
	assert.Equal(t, want, ForWeChat(in))
}

func TestPipelineProcess_EntityEncodedTokens(t *testing.T) {
	lookup := newStubLookup(map[string]PhotoRecord{"7": {URL: "https://cdn/7.jpg"}})
	p := NewPipeline(NewResolver(lookup, nil), nil, nil)

	cases := []struct {
		name string
		res  generator.GenerationResult
		want string
	}{
		{"decimal entity in text", generator.GenerationResult{HTML: "<p>见 PHOTO&#58;7 图</p>"}, `src="https://cdn/7.jpg"`},
		{"hex entity in src", generator.GenerationResult{HTML: `<img src="PHOTO&#x3A;7">`}, `src="https://cdn/7.jpg"`},
		{"named entity", generator.GenerationResult{HTML: "<p>PHOTO&colon;8</p>"}, `alt="` + MissingImageAlt + `"`},
		{"entity inside the word", generator.GenerationResult{HTML: "<p>PHOT&#79;:7</p>"}, `src="https://cdn/7.jpg"`},
		{"markdown", generator.GenerationResult{Markdown: "![现场](PHOTO&#58;7)\n\nPHOTO&#x3a;9"}, `src="https://cdn/7.jpg"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := p.Process(context.Background(), tc.res, nil)
			assert.Contains(t, d.HTML, tc.want)
			assert.False(t, PhotoToken.MatchString(d.HTML), d.HTML)
			assert.False(t, PhotoToken.MatchString(d.Markdown), d.Markdown)
			assert.NotContains(t, d.Markdown, "PHOTO&")
		})
	}
}
