package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"ai_news_writer/generator"
	"ai_news_writer/render"
)

const (
	generatePath = "/api/ai/news/generate"
	jobPath      = "/api/ai/news/jobs/{id}"
	promptPath   = "/api/ai/news/prompt"
	photoPath    = "/api/photos/{id}"
)

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Client talks to the generation service and the photo lookup endpoint.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

func WithDebug(debug bool) Option {
	return func(c *Client) { c.http.SetDebug(debug) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建服务客户端，baseURL 形如 http://127.0.0.1:8080。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(60*time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "ai-news-writer/1.0"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &StatusError{Method: method, URL: resp.Request.URL, Code: resp.StatusCode(), Body: body}
	}
	c.logger.Debug("service call", zap.String("method", method), zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()), zap.Duration("took", resp.Time()))
	return resp.Body(), nil
}

// Submit posts a generation request.
func (c *Client) Submit(ctx context.Context, req generator.SubmitRequest) (generator.JobUpdate, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetBody(req), resty.MethodPost, generatePath)
	if err != nil {
		return generator.JobUpdate{}, err
	}
	return ParseJobUpdate(body)
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (generator.JobUpdate, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetPathParam("id", jobID), resty.MethodGet, jobPath)
	if err != nil {
		return generator.JobUpdate{}, err
	}
	up, err := ParseJobUpdate(body)
	if err == nil && up.JobID == "" {
		up.JobID = jobID
	}
	return up, err
}

// CancelJob asks the service to cancel a job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (generator.JobUpdate, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetPathParam("id", jobID), resty.MethodDelete, jobPath)
	if err != nil {
		return generator.JobUpdate{}, err
	}
	return ParseJobUpdate(body)
}

// PreviewPrompt asks the service for the prompt it would assemble.
func (c *Client) PreviewPrompt(ctx context.Context, req generator.SubmitRequest) (string, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetBody(req), resty.MethodPost, promptPath)
	if err != nil {
		return "", err
	}
	return ParsePromptPreview(body)
}

// GetPhoto looks a photo up by id.
func (c *Client) GetPhoto(ctx context.Context, id string) (render.PhotoRecord, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetPathParam("id", id), resty.MethodGet, photoPath)
	if err != nil {
		return render.PhotoRecord{}, err
	}
	return ParsePhoto(body)
}
