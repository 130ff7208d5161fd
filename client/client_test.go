package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_news_writer/generator"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/news/generate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req generator.SubmitRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if req.Form == nil || req.Form.EventName == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"form required"}`)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"jobId":"J1","status":"submitted"}`)
	})
	mux.HandleFunc("/api/ai/news/jobs/J1", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"status":"succeeded","result":{"title":"t","markdown":"![x](PHOTO:7)"}}`)
		case http.MethodDelete:
			_, _ = io.WriteString(w, `{"jobId":"J1","status":"cancelled"}`)
		}
	})
	mux.HandleFunc("/api/ai/news/prompt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"assembledPrompt":"活动名称：开幕式"}`)
	})
	mux.HandleFunc("/api/photos/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"id":"7","cosUrl":"https://cos/7.jpg","photographerName":"张三"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithToken("secret"))
	ctx := context.Background()

	up, err := c.Submit(ctx, generator.NewSubmitRequest(generator.GenerationRequest{
		Form: generator.FormFields{EventName: "开幕式"},
	}))
	require.NoError(t, err)
	assert.Equal(t, generator.JobUpdate{JobID: "J1", Status: generator.JobSubmitted}, up)

	up, err = c.GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, "J1", up.JobID)
	assert.Equal(t, generator.JobSucceeded, up.Status)
	require.NotNil(t, up.Result)
	assert.Equal(t, "![x](PHOTO:7)", up.Result.Markdown)

	up, err = c.CancelJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, generator.JobCancelled, up.Status)

	prompt, err := c.PreviewPrompt(ctx, generator.SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "活动名称：开幕式", prompt)

	photo, err := c.GetPhoto(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "https://cos/7.jpg", photo.AbsoluteURL())
	assert.Equal(t, "张三", photo.PhotographerName)
}

func TestClientStatusError(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithToken("secret"))

	_, err := c.Submit(context.Background(), generator.SubmitRequest{FullPrompt: "x"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "form required")

	_, err = c.GetPhoto(context.Background(), "404")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).GetJob(context.Background(), "J1")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
