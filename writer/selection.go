package writer

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ai_news_writer/generator"
)

// MaxSelection 中转站最多保留的照片数。
const MaxSelection = 30

var (
	ErrSelectionFull = errors.New("photo selection is full")
	ErrInvalidPhoto  = errors.New("photo has neither id nor url")
)

// SelectionStore holds the photos picked for one writer session. It is passed
// explicitly to whatever needs it; there is no package-level instance.
type SelectionStore struct {
	mu        sync.Mutex
	items     []generator.SelectedPhotoRef
	listeners map[int]func([]generator.SelectedPhotoRef)
	nextID    int
	logger    *zap.Logger
}

func NewSelectionStore(logger *zap.Logger, initial ...generator.SelectedPhotoRef) *SelectionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SelectionStore{
		listeners: make(map[int]func([]generator.SelectedPhotoRef)),
		logger:    logger,
	}
	for _, p := range initial {
		if _, err := s.add(p); err != nil {
			logger.Warn("drop initial photo", zap.String("photo_id", p.ID), zap.Error(err))
		}
	}
	return s
}

func selectionKey(p generator.SelectedPhotoRef) string {
	if p.ID != "" {
		return p.ID
	}
	return p.URL
}

// normalizePhoto 统一照片结构，保证下游总能拿到 id/缩略图等字段。
func normalizePhoto(p generator.SelectedPhotoRef) generator.SelectedPhotoRef {
	p.ID = strings.TrimSpace(p.ID)
	p.URL = strings.TrimSpace(p.URL)
	p.ThumbURL = strings.TrimSpace(p.ThumbURL)
	if p.ID == "" {
		p.ID = p.URL
	}
	if p.ThumbURL == "" {
		p.ThumbURL = p.URL
	}
	p.Description = strings.TrimSpace(p.Description)
	p.ProjectTitle = strings.TrimSpace(p.ProjectTitle)
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}

// Add appends p unless it is already selected. Adding a photo that is already
// present is not an error.
func (s *SelectionStore) Add(p generator.SelectedPhotoRef) error {
	added, err := s.add(p)
	if added {
		s.notify()
	}
	return err
}

func (s *SelectionStore) add(p generator.SelectedPhotoRef) (bool, error) {
	p = normalizePhoto(p)
	key := selectionKey(p)
	if key == "" {
		return false, ErrInvalidPhoto
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.items {
		if selectionKey(cur) == key {
			return false, nil
		}
	}
	if len(s.items) >= MaxSelection {
		return false, ErrSelectionFull
	}
	s.items = append(s.items, p)
	return true, nil
}

// Remove drops the photo with the given id (or url for id-less photos).
func (s *SelectionStore) Remove(idOrURL string) bool {
	s.mu.Lock()
	kept := s.items[:0]
	for _, p := range s.items {
		if selectionKey(p) != idOrURL {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(s.items)
	s.items = kept
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

func (s *SelectionStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.notify()
}

// All returns a copy of the current selection in insertion order.
func (s *SelectionStore) All() []generator.SelectedPhotoRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generator.GenerationRequest{SelectedPhotos: s.items}.Clone().SelectedPhotos
}

func (s *SelectionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn and calls it right away with the current selection.
// The returned func unregisters it.
func (s *SelectionStore) Subscribe(fn func([]generator.SelectedPhotoRef)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	s.call(fn, s.All())
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SelectionStore) notify() {
	s.mu.Lock()
	fns := make([]func([]generator.SelectedPhotoRef), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.call(fn, s.All())
	}
}

func (s *SelectionStore) call(fn func([]generator.SelectedPhotoRef), snapshot []generator.SelectedPhotoRef) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("selection listener panicked", zap.Any("panic", r))
		}
	}()
	fn(snapshot)
}
