// Package httpserver exposes the Load and Query boundaries over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pable/codstats/internal/filter"
	"github.com/pable/codstats/internal/model"
	"github.com/pable/codstats/internal/session"
)

// maxUploadSize bounds POST /api/load bodies.
const maxUploadSize = 64 << 20

// Analytics is the narrow session contract required by the HTTP API.
type Analytics interface {
	Load(ctx context.Context, data []byte, kind string) (session.LoadOutcome, error)
	Query(ctx context.Context, spec model.FilterSpec) (*session.QueryResult, error)
	Outcome() (session.LoadOutcome, error)
	DefaultFilter() model.FilterSpec
}

// Server provides an HTTP API over one analytics session.
type Server struct {
	addr      string
	svc       Analytics
	log       zerolog.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, svc Analytics, log zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		svc:    svc,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/dataset", s.handleDataset)
	r.POST("/api/load", s.handleLoad)
	r.POST("/api/query", s.handleQuery)
	return r
}

// Start begins serving HTTP requests and returns the bound address.
func (s *Server) Start() (string, error) {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", err
	}

	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()
	return listener.Addr().String(), nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if out, err := s.svc.Outcome(); err == nil {
		body["dataset_id"] = out.DatasetID
		body["matches"] = out.Dispositions.Accepted
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleDataset(c *gin.Context) {
	out, err := s.svc.Outcome()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": out,
		"default": s.svc.DefaultFilter(),
	})
}

func (s *Server) handleLoad(c *gin.Context) {
	kind := c.Query("kind")
	if kind == "" {
		kind = c.ContentType()
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document too large or unreadable"})
		return
	}

	out, err := s.svc.Load(c.Request.Context(), data, kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// queryRequest mirrors model.FilterSpec; omitted fields take the dataset's
// default selection while an explicit empty list selects nothing.
type queryRequest struct {
	Operators *[]string `json:"operators"`
	GameTypes *[]string `json:"game_types"`
	Maps      *[]string `json:"maps"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	spec := s.svc.DefaultFilter()
	if req.Operators != nil {
		spec.Operators = *req.Operators
	}
	if req.GameTypes != nil {
		spec.GameTypes = *req.GameTypes
	}
	if req.Maps != nil {
		spec.Maps = *req.Maps
	}
	var err error
	if req.From != "" {
		if spec.Start, err = filter.ParseBound(req.From, false); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.To != "" {
		if spec.End, err = filter.ParseBound(req.To, true); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := s.svc.Query(c.Request.Context(), spec)
	if errors.Is(err, model.ErrEmptyResult) {
		c.JSON(http.StatusOK, gin.H{"empty": true, "message": err.Error(), "filter": spec})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail maps pipeline errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		unsupported *model.UnsupportedFormatError
		noRecords   *model.NoRecordsFoundError
		noAccepted  *model.NoAcceptedRecordsError
	)
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}
	switch {
	case errors.As(err, &unsupported):
		status = http.StatusUnsupportedMediaType
	case errors.As(err, &noRecords):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &noAccepted):
		status = http.StatusUnprocessableEntity
		body["dispositions"] = noAccepted.Dispositions
	case errors.Is(err, model.ErrNoDataset):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusConflict
		body["error"] = "query superseded"
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, body)
}
