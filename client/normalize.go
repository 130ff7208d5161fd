package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"ai_news_writer/generator"
	"ai_news_writer/render"
)

// ErrMalformedResponse marks a reply that cannot be read as the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// 生成服务的返回字段并不统一，这里列出每个概念可能出现的字段名，按优先级排列。
var (
	jobIDFields        = []string{"jobId", "job_id", "id", "data.jobId", "data.job_id"}
	statusFields       = []string{"status", "state", "data.status"}
	resultFields       = []string{"result", "data.result", "data"}
	errorFields        = []string{"error", "error.message", "errorMessage", "data.error"}
	titleFields        = []string{"title", "headline"}
	subtitleFields     = []string{"subtitle", "subTitle", "sub_title"}
	markdownFields     = []string{"markdown", "md", "content"}
	htmlFields         = []string{"html", "contentHtml", "content_html"}
	photoURLFields     = []string{"url", "fullUrl", "cosUrl", "src", "thumbSrc"}
	photographerFields = []string{"photographerName", "photographer_name", "photographer.name"}
)

func firstString(node gjson.Result, paths ...string) string {
	for _, p := range paths {
		r := node.Get(p)
		if r.Type != gjson.String && r.Type != gjson.Number {
			continue
		}
		if s := strings.TrimSpace(r.String()); s != "" {
			return s
		}
	}
	return ""
}

func parseObject(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: expected object, got %s", ErrMalformedResponse, root.Type)
	}
	return root, nil
}

// ParseJobUpdate turns a submit or poll reply into a JobUpdate. A reply without
// a status counts as succeeded when it carries a result and as submitted when
// it only carries a job id.
func ParseJobUpdate(body []byte) (generator.JobUpdate, error) {
	root, err := parseObject(body)
	if err != nil {
		return generator.JobUpdate{}, err
	}

	up := generator.JobUpdate{
		JobID: firstString(root, jobIDFields...),
		Error: firstString(root, errorFields...),
	}
	for _, p := range resultFields {
		if res, ok := parseResult(root.Get(p)); ok {
			up.Result = &res
			break
		}
	}

	raw := firstString(root, statusFields...)
	switch {
	case raw != "":
		st, ok := generator.ParseJobStatus(raw)
		if !ok {
			return generator.JobUpdate{}, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, raw)
		}
		up.Status = st
	case up.Result != nil:
		up.Status = generator.JobSucceeded
	case up.JobID != "":
		up.Status = generator.JobSubmitted
	default:
		return generator.JobUpdate{}, fmt.Errorf("%w: neither status, result nor job id", ErrMalformedResponse)
	}
	return up, nil
}

// parseResult reads a result node. A bare string is taken as the markdown body.
func parseResult(node gjson.Result) (generator.GenerationResult, bool) {
	if node.Type == gjson.String {
		if strings.TrimSpace(node.String()) == "" {
			return generator.GenerationResult{}, false
		}
		return generator.GenerationResult{Markdown: node.String()}, true
	}
	if !node.IsObject() {
		return generator.GenerationResult{}, false
	}

	res := generator.GenerationResult{
		Title:    firstString(node, titleFields...),
		Subtitle: firstString(node, subtitleFields...),
		Markdown: firstRaw(node, markdownFields...),
		HTML:     firstRaw(node, htmlFields...),
	}
	for _, p := range node.Get("photos").Array() {
		if ph, ok := parseResultPhoto(p); ok {
			res.Photos = append(res.Photos, ph)
		}
	}
	if res.Title == "" && res.Subtitle == "" && res.Markdown == "" && res.HTML == "" && len(res.Photos) == 0 {
		return generator.GenerationResult{}, false
	}
	return res, true
}

// firstRaw is firstString without trimming, for body text.
func firstRaw(node gjson.Result, paths ...string) string {
	for _, p := range paths {
		r := node.Get(p)
		if r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
			return r.String()
		}
	}
	return ""
}

func parseResultPhoto(node gjson.Result) (generator.ResultPhoto, bool) {
	if !node.IsObject() {
		return generator.ResultPhoto{}, false
	}
	ph := generator.ResultPhoto{
		ID:               firstString(node, "id", "photoId", "photo_id"),
		PhotographerName: firstString(node, photographerFields...),
	}
	if ph.ID == "" {
		return generator.ResultPhoto{}, false
	}
	rec := render.PhotoRecord{
		URL:      firstString(node, "url"),
		FullURL:  firstString(node, "fullUrl"),
		CosURL:   firstString(node, "cosUrl"),
		Src:      firstString(node, "src"),
		ThumbSrc: firstString(node, "thumbSrc"),
	}
	ph.URL = rec.AbsoluteURL()
	if ph.URL == "" {
		ph.URL = firstString(node, photoURLFields...)
	}
	return ph, true
}

// ParsePhoto reads a photo lookup reply, which may wrap the photo in "data".
func ParsePhoto(body []byte) (render.PhotoRecord, error) {
	root, err := parseObject(body)
	if err != nil {
		return render.PhotoRecord{}, err
	}
	node := root
	if firstString(root, photoURLFields...) == "" && root.Get("data").IsObject() {
		node = root.Get("data")
	}
	return render.PhotoRecord{
		URL:              firstString(node, "url"),
		FullURL:          firstString(node, "fullUrl", "full_url"),
		CosURL:           firstString(node, "cosUrl", "cos_url"),
		Src:              firstString(node, "src"),
		ThumbSrc:         firstString(node, "thumbSrc", "thumb_src", "thumbUrl"),
		PhotographerName: firstString(node, photographerFields...),
	}, nil
}

// ParsePromptPreview reads the assembled prompt from a preview reply.
func ParsePromptPreview(body []byte) (string, error) {
	root, err := parseObject(body)
	if err != nil {
		return "", err
	}
	for _, p := range []string{"assembledPrompt", "prompt", "data.assembledPrompt"} {
		if r := root.Get(p); r.Type == gjson.String {
			return r.String(), nil
		}
	}
	return "", fmt.Errorf("%w: no assembledPrompt", ErrMalformedResponse)
}
