package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai_news_writer/generator"
	"ai_news_writer/jobs"
	"ai_news_writer/photos"
)

// PhotoCatalog is the read side of the photo library.
type PhotoCatalog interface {
	Get(ctx context.Context, id string) (photos.Photo, error)
}

// Server 是新闻稿生成服务的 HTTP 接口。
type Server struct {
	runner *jobs.Runner
	photos PhotoCatalog
	logger *zap.Logger
}

func New(runner *jobs.Runner, catalog PhotoCatalog, logger *zap.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("job runner required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, photos: catalog, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logMiddleware(s.logger))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	api := r.Group("/api")
	news := api.Group("/ai/news")
	{
		news.POST("/generate", s.handleGenerate)
		news.POST("/prompt", s.handlePrompt)
		news.GET("/jobs/:id", s.handleJobGet)
		news.DELETE("/jobs/:id", s.handleJobCancel)
	}
	api.GET("/photos/:id", s.handlePhotoGet)
	return r
}

func bindSubmit(c *gin.Context) (generator.SubmitRequest, bool) {
	var req generator.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.FullPrompt) == "" && req.Form == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fullPrompt or form required"})
		return req, false
	}
	return req, true
}

// handleGenerate 提交生成任务；sync 为 true 时等待结果直接返回。
func (s *Server) handleGenerate(c *gin.Context) {
	req, ok := bindSubmit(c)
	if !ok {
		return
	}
	if !req.Sync {
		c.JSON(http.StatusAccepted, s.runner.Submit(req))
		return
	}

	res, err := s.runner.RunSync(c.Request.Context(), req)
	if err != nil {
		s.logger.Warn("sync generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, generator.JobUpdate{Status: generator.JobFailed, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, generator.JobUpdate{Status: generator.JobSucceeded, Result: &res})
}

func (s *Server) handlePrompt(c *gin.Context) {
	req, ok := bindSubmit(c)
	if !ok {
		return
	}
	gr := req.Request()
	gr.FullPrompt = ""
	c.JSON(http.StatusOK, gin.H{"assembledPrompt": generator.AssemblePrompt(gr)})
}

func (s *Server) handleJobGet(c *gin.Context) {
	up, err := s.runner.Store().Get(c.Param("id"))
	if err != nil {
		s.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (s *Server) handleJobCancel(c *gin.Context) {
	up, err := s.runner.Cancel(c.Param("id"))
	if err != nil {
		s.jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (s *Server) jobError(c *gin.Context, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handlePhotoGet(c *gin.Context) {
	if s.photos == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": photos.ErrNotFound.Error()})
		return
	}
	p, err := s.photos.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, photos.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("photo lookup failed", zap.String("photo_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, p)
	}
}

func logMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if path == "" {
			path = "/"
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
