package writer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ai_news_writer/generator"
	"ai_news_writer/render"
)

// PromptPreviewer asks the generation service how it would phrase the prompt.
type PromptPreviewer interface {
	PreviewPrompt(ctx context.Context, req generator.SubmitRequest) (string, error)
}

// Session 持有一篇稿件的编辑状态：表单、已选照片、生成结果和历史。
type Session struct {
	ctl       *Controller
	pipeline  *render.Pipeline
	selection *SelectionStore
	drafts    *DraftStore
	previewer PromptPreviewer
	logger    *zap.Logger
	unsub     func()

	mu             sync.Mutex
	request        generator.GenerationRequest
	advancedPrompt string
	draft          render.ResolvedDraft
	history        []generator.Turn
	cancel         context.CancelFunc
}

type SessionOption func(*Session)

// WithDraftStore restores the session from store and keeps it saved there.
func WithDraftStore(store *DraftStore) SessionOption {
	return func(s *Session) { s.drafts = store }
}

func WithPromptPreviewer(p PromptPreviewer) SessionOption {
	return func(s *Session) { s.previewer = p }
}

func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession wires a session. A nil selection gets a fresh store.
func NewSession(ctl *Controller, pipeline *render.Pipeline, selection *SelectionStore, opts ...SessionOption) *Session {
	s := &Session{
		ctl:      ctl,
		pipeline: pipeline,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if selection == nil {
		selection = NewSelectionStore(s.logger)
	}
	s.selection = selection
	if s.pipeline == nil {
		s.pipeline = render.NewPipeline(nil, nil, s.logger)
	}

	s.restore()
	s.unsub = s.selection.Subscribe(func([]generator.SelectedPhotoRef) { s.persist() })
	return s
}

func (s *Session) restore() {
	if s.drafts == nil {
		return
	}
	snap, ok := s.drafts.Restore()
	if !ok {
		return
	}
	s.mu.Lock()
	s.request = snap.Request.Clone()
	s.advancedPrompt = snap.AdvancedPrompt
	s.draft = render.ResolvedDraft{
		Title:    snap.Title,
		Subtitle: snap.Subtitle,
		Markdown: snap.Markdown,
		HTML:     snap.HTML,
	}
	s.mu.Unlock()

	for _, p := range snap.Selection {
		if err := s.selection.Add(p); err != nil {
			s.logger.Warn("drop restored photo", zap.String("photo_id", p.ID), zap.Error(err))
		}
	}
	s.logger.Info("draft restored", zap.Time("saved_at", time.UnixMilli(snap.SavedAt)))
}

func (s *Session) persist() {
	if s.drafts == nil {
		return
	}
	s.mu.Lock()
	snap := DraftSnapshot{
		Request:        s.request,
		Title:          s.draft.Title,
		Subtitle:       s.draft.Subtitle,
		Markdown:       s.draft.Markdown,
		HTML:           s.draft.HTML,
		AdvancedPrompt: s.advancedPrompt,
	}
	s.mu.Unlock()
	snap.Selection = s.selection.All()
	s.drafts.Save(snap)
}

func (s *Session) Selection() *SelectionStore { return s.selection }

// SetRequest replaces the form and reference texts. Photos come from the
// selection store.
func (s *Session) SetRequest(req generator.GenerationRequest) {
	s.mu.Lock()
	s.request = req.Clone()
	s.request.SelectedPhotos = nil
	s.mu.Unlock()
	s.persist()
}

// SetAdvancedPrompt sets a raw prompt that overrides the structured fields.
func (s *Session) SetAdvancedPrompt(p string) {
	s.mu.Lock()
	s.advancedPrompt = p
	s.mu.Unlock()
	s.persist()
}

// Request returns what would be submitted now.
func (s *Session) Request() generator.GenerationRequest {
	s.mu.Lock()
	req := s.request.Clone()
	if strings.TrimSpace(s.advancedPrompt) != "" {
		req.FullPrompt = s.advancedPrompt
	}
	s.mu.Unlock()
	req.SelectedPhotos = s.selection.All()
	return req
}

func (s *Session) Draft() render.ResolvedDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) History() []generator.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generator.Turn(nil), s.history...)
}

// Prompt returns the prompt preview from the service, or the locally
// assembled prompt when the service cannot answer.
func (s *Session) Prompt(ctx context.Context) string {
	req := s.Request()
	req.FullPrompt = ""
	if s.previewer != nil {
		text, err := s.previewer.PreviewPrompt(ctx, generator.NewSubmitRequest(req))
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		s.logger.Warn("prompt preview unavailable, assembling locally", zap.Error(err))
	}
	return generator.AssemblePrompt(req)
}

// Generate runs one job for the current request. On failure the previous
// draft is kept.
func (s *Session) Generate(ctx context.Context, onUpdate func(generator.JobUpdate)) (render.ResolvedDraft, error) {
	req := s.Request()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.cancel != nil {
		s.logger.Warn("generation already running in this session; starting another")
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	res, err := s.ctl.Generate(ctx, req, onUpdate)
	if err != nil {
		if !errors.Is(err, ErrPollStopped) && !errors.Is(err, context.Canceled) {
			s.logger.Error("generation failed", zap.Error(err))
		}
		return render.ResolvedDraft{}, err
	}

	draft := s.pipeline.Process(ctx, res, req.SelectedPhotos)
	if draft.Title == "" {
		draft.Title = strings.TrimSpace(req.Form.EventName)
	}
	s.mu.Lock()
	s.draft = draft
	s.history = append(s.history, generator.Turn{
		Prompt:    generator.BuildNewsPrompt(req).User,
		Result:    res,
		CreatedAt: time.Now(),
	})
	s.mu.Unlock()
	s.persist()
	return draft, nil
}

// Cancel stops the running generation, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) Preview() string {
	return s.pipeline.Preview(s.Draft())
}

func (s *Session) CopyHTML() string {
	return s.pipeline.CopyHTML(s.Draft())
}

// Close stops listening to the selection and writes any pending draft.
func (s *Session) Close() error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.drafts == nil {
		return nil
	}
	return s.drafts.Flush()
}
