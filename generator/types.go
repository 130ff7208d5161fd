package generator

import (
	"sort"
	"strings"
	"time"
)

// FormFields 是写稿表单中的结构化字段。
type FormFields struct {
	EventName    string `json:"eventName,omitempty" yaml:"eventName"`
	EventDate    string `json:"eventDate,omitempty" yaml:"eventDate"`
	Location     string `json:"location,omitempty" yaml:"location"`
	Organizer    string `json:"organizer,omitempty" yaml:"organizer"`
	Participants string `json:"participants,omitempty" yaml:"participants"`
	Highlights   string `json:"highlights,omitempty" yaml:"highlights"`
	Usage        string `json:"usage,omitempty" yaml:"usage"`
	Tone         string `json:"tone,omitempty" yaml:"tone"`
	TargetWords  string `json:"targetWords,omitempty" yaml:"targetWords"`
	StylePreset  string `json:"stylePreset,omitempty" yaml:"stylePreset"`
}

// SelectedPhotoRef 是用户从相册/中转站选中的照片，只读。
type SelectedPhotoRef struct {
	ID               string   `json:"id" yaml:"id"`
	URL              string   `json:"url,omitempty" yaml:"url"`
	ThumbURL         string   `json:"thumbUrl,omitempty" yaml:"thumbUrl"`
	Description      string   `json:"description,omitempty" yaml:"description"`
	Tags             []string `json:"tags,omitempty" yaml:"tags"`
	PhotographerID   string   `json:"photographerId,omitempty" yaml:"photographerId"`
	PhotographerName string   `json:"photographerName,omitempty" yaml:"photographerName"`
	ProjectTitle     string   `json:"projectTitle,omitempty" yaml:"projectTitle"`
}

// GenerationRequest describes one article to generate. It is copied on submit and
// never mutated afterwards.
type GenerationRequest struct {
	Form             FormFields         `json:"form" yaml:"form"`
	ReferenceArticle string             `json:"referenceArticle,omitempty" yaml:"referenceArticle"`
	InterviewText    string             `json:"interviewText,omitempty" yaml:"interviewText"`
	SelectedPhotos   []SelectedPhotoRef `json:"selectedPhotos,omitempty" yaml:"selectedPhotos"`
	// FullPrompt 非空时直接作为提示词，忽略结构化字段。
	FullPrompt string `json:"fullPrompt,omitempty" yaml:"fullPrompt"`
}

// Clone returns a deep copy so the caller may keep editing its own request.
func (r GenerationRequest) Clone() GenerationRequest {
	out := r
	if r.SelectedPhotos != nil {
		out.SelectedPhotos = make([]SelectedPhotoRef, len(r.SelectedPhotos))
		for i, p := range r.SelectedPhotos {
			if p.Tags != nil {
				p.Tags = append([]string(nil), p.Tags...)
			}
			out.SelectedPhotos[i] = p
		}
	}
	return out
}

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobSubmitted  JobStatus = "submitted"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// ParseJobStatus maps the status spellings seen on the wire to a JobStatus.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "submitted", "queued", "pending":
		return JobSubmitted, true
	case "processing", "running", "in_progress":
		return JobProcessing, true
	case "succeeded", "success", "done", "completed":
		return JobSucceeded, true
	case "failed", "error":
		return JobFailed, true
	case "cancelled", "canceled":
		return JobCancelled, true
	}
	return "", false
}

// ResultPhoto 是生成结果里附带的照片信息。
type ResultPhoto struct {
	ID               string `json:"id"`
	URL              string `json:"url,omitempty"`
	PhotographerName string `json:"photographerName,omitempty"`
}

// GenerationResult is the strict internal shape of a finished draft.
type GenerationResult struct {
	Title    string        `json:"title,omitempty"`
	Subtitle string        `json:"subtitle,omitempty"`
	Markdown string        `json:"markdown,omitempty"`
	HTML     string        `json:"html,omitempty"`
	Photos   []ResultPhoto `json:"photos,omitempty"`
}

// JobUpdate is one observation of a job, either from submit or from a poll.
type JobUpdate struct {
	JobID  string            `json:"jobId,omitempty"`
	Status JobStatus         `json:"status"`
	Result *GenerationResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// SubmitRequest 是提交给生成服务的请求体。
type SubmitRequest struct {
	FullPrompt       string             `json:"fullPrompt,omitempty"`
	Form             *FormFields        `json:"form,omitempty"`
	ReferenceArticle string             `json:"referenceArticle,omitempty"`
	InterviewText    string             `json:"interviewText,omitempty"`
	SelectedPhotos   []SelectedPhotoRef `json:"selectedPhotos,omitempty"`
	ClientPhotoMap   map[string]string  `json:"clientPhotoMap,omitempty"`
	Sync             bool               `json:"sync,omitempty"`
}

// NewSubmitRequest builds the wire payload: the override prompt when present,
// otherwise the structured form, plus reference text and photo metadata.
func NewSubmitRequest(req GenerationRequest) SubmitRequest {
	out := SubmitRequest{
		ReferenceArticle: req.ReferenceArticle,
		InterviewText:    req.InterviewText,
	}
	if strings.TrimSpace(req.FullPrompt) != "" {
		out.FullPrompt = req.FullPrompt
	} else {
		form := req.Form
		out.Form = &form
	}
	if len(req.SelectedPhotos) > 0 {
		out.SelectedPhotos = req.Clone().SelectedPhotos
		out.ClientPhotoMap = make(map[string]string, len(req.SelectedPhotos))
		for _, p := range req.SelectedPhotos {
			if thumb := p.ThumbURL; thumb != "" {
				out.ClientPhotoMap[p.ID] = thumb
			} else if p.URL != "" {
				out.ClientPhotoMap[p.ID] = p.URL
			}
		}
	}
	return out
}

// Request converts a submitted payload back into a GenerationRequest. URLs
// from ClientPhotoMap fill photos that arrived without one; ids only present
// in the map are appended in sorted order.
func (s SubmitRequest) Request() GenerationRequest {
	req := GenerationRequest{
		ReferenceArticle: s.ReferenceArticle,
		InterviewText:    s.InterviewText,
		SelectedPhotos:   GenerationRequest{SelectedPhotos: s.SelectedPhotos}.Clone().SelectedPhotos,
		FullPrompt:       s.FullPrompt,
	}
	if s.Form != nil {
		req.Form = *s.Form
	}
	if len(s.ClientPhotoMap) == 0 {
		return req
	}
	seen := make(map[string]bool, len(req.SelectedPhotos))
	for i, p := range req.SelectedPhotos {
		seen[p.ID] = true
		if u := s.ClientPhotoMap[p.ID]; u != "" && p.ThumbURL == "" && p.URL == "" {
			req.SelectedPhotos[i].ThumbURL = u
		}
	}
	ids := make([]string, 0, len(s.ClientPhotoMap))
	for id := range s.ClientPhotoMap {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		req.SelectedPhotos = append(req.SelectedPhotos, SelectedPhotoRef{ID: id, ThumbURL: s.ClientPhotoMap[id]})
	}
	return req
}

// Turn 记录一次生成。
type Turn struct {
	Prompt    string
	Result    GenerationResult
	CreatedAt time.Time
}
