package generator

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"
)

// PhotoSource looks up catalog data for photos referenced by a draft.
type PhotoSource interface {
	LookupPhoto(ctx context.Context, id string) (ResultPhoto, bool)
}

// Agent 负责根据请求生成新闻稿。
type Agent struct {
	llm    LLMClient
	photos PhotoSource
	logger *zap.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithPhotoSource attaches catalog lookup used to fill GenerationResult.Photos.
func WithPhotoSource(src PhotoSource) AgentOption {
	return func(a *Agent) { a.photos = src }
}

// WithLogger sets the agent logger.
func WithLogger(l *zap.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAgent(llm LLMClient, opts ...AgentOption) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	a := &Agent{llm: llm, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Generate 调用模型生成稿件，并附上稿件引用到的照片信息。
func (a *Agent) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	prompt := BuildNewsPrompt(req)
	a.logger.Debug("calling llm", zap.Int("prompt_len", len(prompt.User)), zap.Int("photos", len(req.SelectedPhotos)))

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return GenerationResult{}, err
	}
	res, err := PostProcess(raw, req)
	if err != nil {
		return GenerationResult{}, err
	}
	res.Photos = a.collectPhotos(ctx, res.Markdown, req.SelectedPhotos)
	return res, nil
}

var photoIDPattern = regexp.MustCompile(`PHOTO:([\w-]+)`)

func (a *Agent) collectPhotos(ctx context.Context, md string, selected []SelectedPhotoRef) []ResultPhoto {
	byID := make(map[string]SelectedPhotoRef, len(selected))
	for _, p := range selected {
		byID[p.ID] = p
	}

	seen := make(map[string]bool)
	var out []ResultPhoto
	for _, m := range photoIDPattern.FindAllStringSubmatch(md, -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true

		photo := ResultPhoto{ID: id}
		if a.photos != nil {
			if found, ok := a.photos.LookupPhoto(ctx, id); ok {
				photo = found
				photo.ID = id
			}
		}
		if sel, ok := byID[id]; ok {
			if photo.URL == "" {
				photo.URL = firstNonEmpty(sel.URL, sel.ThumbURL)
			}
			if photo.PhotographerName == "" {
				photo.PhotographerName = sel.PhotographerName
			}
		}
		if photo.URL == "" && photo.PhotographerName == "" {
			a.logger.Warn("photo referenced by draft is unknown", zap.String("photo_id", id))
			continue
		}
		out = append(out, photo)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
