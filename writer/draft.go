package writer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"ai_news_writer/generator"
)

// DraftKey names the snapshot format. Files carrying another version are
// ignored on restore.
const DraftKey = "ainews.writer.draft.v1"

// DefaultDraftDebounce 编辑停止多久后落盘。
const DefaultDraftDebounce = 350 * time.Millisecond

// DraftSnapshot is the persisted state of an in-progress article.
type DraftSnapshot struct {
	Version        string                       `json:"version"`
	Request        generator.GenerationRequest  `json:"request"`
	Selection      []generator.SelectedPhotoRef `json:"selection,omitempty"`
	Title          string                       `json:"title,omitempty"`
	Subtitle       string                       `json:"subtitle,omitempty"`
	Markdown       string                       `json:"markdown,omitempty"`
	HTML           string                       `json:"html,omitempty"`
	AdvancedPrompt string                       `json:"advancedPrompt,omitempty"`
	SavedAt        int64                        `json:"savedAt,omitempty"`
}

// DraftStore writes snapshots to a file after a quiet period.
type DraftStore struct {
	path   string
	delay  time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	pending *DraftSnapshot

	// writeMu 保证取出 pending 与落盘按同一顺序完成，旧快照不会盖住新的。
	writeMu sync.Mutex
}

type DraftOption func(*DraftStore)

func WithDraftDebounce(d time.Duration) DraftOption {
	return func(s *DraftStore) {
		if d >= 0 {
			s.delay = d
		}
	}
}

func WithDraftLogger(l *zap.Logger) DraftOption {
	return func(s *DraftStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewDraftStore keeps its snapshot in dir.
func NewDraftStore(dir string, opts ...DraftOption) *DraftStore {
	s := &DraftStore{
		path:   filepath.Join(dir, DraftKey+".json"),
		delay:  DefaultDraftDebounce,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DraftStore) Path() string { return s.path }

// Save schedules snap to be written once no other Save arrives within the
// debounce window. Only the latest snapshot is written.
func (s *DraftStore) Save(snap DraftSnapshot) {
	snap.Version = DraftKey
	snap.Request = snap.Request.Clone()
	snap.Selection = generator.GenerationRequest{SelectedPhotos: snap.Selection}.Clone().SelectedPhotos

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn("save draft failed", zap.String("path", s.path), zap.Error(err))
		}
	})
}

// Flush writes a pending snapshot now.
func (s *DraftStore) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if snap == nil {
		return nil
	}
	return s.write(*snap)
}

func (s *DraftStore) write(snap DraftSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	data, err = sjson.SetBytes(data, "savedAt", s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("stamp draft: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), DraftKey+"-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Restore loads the last snapshot. Missing, corrupt or other-version files
// yield ok == false.
func (s *DraftStore) Restore() (DraftSnapshot, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read draft failed", zap.String("path", s.path), zap.Error(err))
		}
		return DraftSnapshot{}, false
	}
	if !gjson.ValidBytes(data) {
		s.logger.Warn("ignore corrupt draft", zap.String("path", s.path))
		return DraftSnapshot{}, false
	}
	if v := gjson.GetBytes(data, "version").String(); v != DraftKey {
		s.logger.Info("ignore draft of other version", zap.String("version", v))
		return DraftSnapshot{}, false
	}
	var snap DraftSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("ignore undecodable draft", zap.String("path", s.path), zap.Error(err))
		return DraftSnapshot{}, false
	}
	return snap, true
}

// Clear drops any pending write and removes the file.
func (s *DraftStore) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
