package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	figureStyle  = `style="margin:12px auto;max-width:100%;text-align:center"`
	captionStyle = `style="font-size:13px;color:#666;margin-top:6px;text-align:center"`
)

func TestFormatPreview_ImageCaptionFromAlt(t *testing.T) {
	out := FormatPreview(`<div><img src="https://a/x.jpg" alt="开幕"/></div>`)

	assert.Equal(t,
		`<div><figure `+figureStyle+`>`+
			`<img src="https://a/x.jpg" alt="开幕" style="max-width:100%;height:auto;display:block;margin:12px auto"/>`+
			`<figcaption `+captionStyle+`>开幕</figcaption></figure></div>`,
		out)
}

func TestFormatPreview_CaptionSources(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		caption string
		copies  int
	}{
		{"data-caption wins", `<div><img src="https://a/x.jpg" data-caption="说明" alt="alt"/></div>`, "说明", 2},
		{"adjacent text", `<div><img src="https://a/x.jpg"/>现场照片</div>`, "现场照片", 1},
		{"em element", `<div><img src="https://a/x.jpg"/> <em>摄影：张三</em></div>`, "摄影：张三", 1},
		{"small element", `<div><img src="https://a/x.jpg"/><small>注</small></div>`, "注", 1},
		{"caption class", `<div><img src="https://a/x.jpg"/><span class="img-Caption">题</span></div>`, "题", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := FormatPreview(tc.in)
			assert.Contains(t, out, `<figcaption `+captionStyle+`>`+tc.caption+`</figcaption>`)
			assert.Equal(t, tc.copies, strings.Count(out, tc.caption), "adjacent caption sources are consumed")
		})
	}
}

func TestFormatPreview_LongAdjacentTextStays(t *testing.T) {
	long := strings.Repeat("长", 200)
	out := FormatPreview(`<div><img src="https://a/x.jpg"/>` + long + `</div>`)

	assert.NotContains(t, out, "<figcaption")
	assert.Contains(t, out, "</figure>"+long+"</div>")
}

func TestFormatPreview_ExistingFigureNotRewrapped(t *testing.T) {
	out := FormatPreview(`<figure><img src="https://a/x.jpg" alt="a"/><figcaption>摄影：王五</figcaption></figure>`)

	assert.Equal(t, 1, strings.Count(out, "<figure"))
	assert.Equal(t, 1, strings.Count(out, "<figcaption"))
	assert.Contains(t, out, "max-width:100%;height:auto;display:block")
}

func TestFormatPreview_KeepsExistingMargin(t *testing.T) {
	out := FormatPreview(`<figure><img src="https://a/x.jpg" style="margin:0;width:50%"/></figure>`)
	assert.Contains(t, out, `style="margin:0;width:50%;max-width:100%;height:auto;display:block"`)
}

func TestFormatPreview_HeadingsAndParagraphs(t *testing.T) {
	out := FormatPreview(`<h2>标题</h2><h4>小</h4><p>正文</p><p style="margin-top:0">紧凑</p>`)

	assert.Contains(t, out, `<h2 style="line-height:1.35;margin-top:6px;margin-bottom:12px;white-space:normal;word-break:break-word;display:block">标题</h2>`)
	assert.Contains(t, out, `<h4>小</h4>`)
	assert.Contains(t, out, `<p style="margin-top:6px;margin-bottom:10px">正文</p>`)
	assert.Contains(t, out, `<p style="margin-top:0;margin-bottom:10px">紧凑</p>`)
}

func TestFormatPreview_PreservesContent(t *testing.T) {
	in := `<p>第一段</p><p><img src="https://a/1.jpg" alt="一"/></p><ul><li>要点</li></ul>`
	out := FormatPreview(in)

	for _, s := range []string{"第一段", `src="https://a/1.jpg"`, "要点", "<li>"} {
		assert.Contains(t, out, s)
	}
}
