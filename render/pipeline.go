package render

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ai_news_writer/generator"
)

// ResolvedDraft is a generation result whose photo tokens are resolved and
// whose hypertext has been sanitized. It is the only form rendered or copied.
type ResolvedDraft struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Markdown string   `json:"markdown"`
	HTML     string   `json:"html"`
	Missing  []string `json:"missing,omitempty"`
}

// Pipeline turns a raw generation result into a ResolvedDraft.
type Pipeline struct {
	resolver  *Resolver
	sanitizer *Sanitizer
	logger    *zap.Logger
}

func NewPipeline(resolver *Resolver, sanitizer *Sanitizer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewResolver(nil, logger)
	}
	if sanitizer == nil {
		sanitizer = NewSanitizer(FailOpen, logger)
	}
	return &Pipeline{resolver: resolver, sanitizer: sanitizer, logger: logger}
}

// Process normalizes and resolves the markdown body, then resolves and
// sanitizes the hypertext body. Without server hypertext the resolved
// markdown is rendered instead.
func (p *Pipeline) Process(ctx context.Context, res generator.GenerationResult, selection []generator.SelectedPhotoRef) ResolvedDraft {
	r := p.resolver.Begin(ctx, res.Photos, selection)

	draft := ResolvedDraft{
		Title:    strings.TrimSpace(res.Title),
		Subtitle: strings.TrimSpace(res.Subtitle),
	}
	if res.Markdown != "" {
		draft.Markdown = r.Markdown(NormalizeMarkdown(FixNestedImages(res.Markdown)))
	}

	h := res.HTML
	if strings.TrimSpace(h) == "" && draft.Markdown != "" {
		rendered, err := MarkdownToHTML(draft.Markdown)
		if err != nil {
			p.logger.Warn("markdown render failed, using plain paragraphs", zap.Error(err))
			rendered = paragraphsHTML(draft.Markdown)
		}
		h = rendered
	}
	if h != "" {
		out := p.sanitizer.Sanitize(r.HTML(h))
		// 其它实体写法要等解析后才显出占位符，再过一轮。
		if PhotoToken.MatchString(out) {
			out = p.sanitizer.Sanitize(r.HTML(out))
		}
		draft.HTML = out
	}
	draft.Missing = r.Missing()
	if len(draft.Missing) > 0 {
		p.logger.Info("draft resolved with placeholders", zap.Strings("photo_ids", draft.Missing))
	}
	return draft
}

// Preview returns the hypertext shown to the reader.
func (p *Pipeline) Preview(d ResolvedDraft) string {
	return FormatPreview(p.sanitizer.Sanitize(d.HTML))
}

// CopyHTML returns hypertext for the clipboard. A draft that only has
// markdown is copied as escaped paragraphs.
func (p *Pipeline) CopyHTML(d ResolvedDraft) string {
	if strings.TrimSpace(d.HTML) != "" {
		return d.HTML
	}
	return paragraphsHTML(d.Markdown)
}
