package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai_news_writer/generator"
)

var ErrNotFound = errors.New("job not found")

// Job is the server-side record of one generation.
type Job struct {
	ID        string
	Status    generator.JobStatus
	Request   generator.SubmitRequest
	Result    *generator.GenerationResult
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time

	cancel context.CancelFunc
}

// Update is the wire view of the job.
func (j *Job) Update() generator.JobUpdate {
	up := generator.JobUpdate{JobID: j.ID, Status: j.Status, Error: j.Error}
	if j.Result != nil {
		res := *j.Result
		up.Result = &res
	}
	return up
}

// Store keeps jobs in memory.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job), now: time.Now}
}

func (s *Store) put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.CreatedAt = s.now()
	j.UpdatedAt = j.CreatedAt
	s.jobs[j.ID] = j
}

// Get returns the current state of job id.
func (s *Store) Get(id string) (generator.JobUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return generator.JobUpdate{}, ErrNotFound
	}
	return j.Update(), nil
}

// update applies fn to a non-terminal job. It reports false when the job is
// unknown or already terminal.
func (s *Store) update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.IsTerminal() {
		return false
	}
	fn(j)
	j.UpdatedAt = s.now()
	return true
}

// Purge drops terminal jobs last touched before cutoff.
func (s *Store) Purge(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.Status.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
