// Package server exposes the generator engine over HTTP: NDJSON streaming
// endpoints, background stream management, one-shot entity samples and the
// monitoring surface.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/clickstream/datagen/internal/config"
	"github.com/example/clickstream/datagen/internal/metrics"
	"github.com/example/clickstream/datagen/internal/model"
	"github.com/example/clickstream/datagen/internal/stream"
)

// Server wires the engine into an HTTP surface.
type Server struct {
	engine   *stream.Engine
	exporter *metrics.Exporter
	cfg      config.StreamConfig
	log      *zap.Logger
	http     *http.Server
}

// New builds the server and its routes.
func New(cfg *config.Config, engine *stream.Engine, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   engine,
		exporter: metrics.NewExporter(engine.Metrics()),
		cfg:      cfg.Stream,
		log:      logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.exporter.Handler()))
	router.GET("/stats", s.handleStats)
	router.GET("/sample/:kind", s.handleSample)
	router.GET("/stream/:kind", s.handleStream)
	router.POST("/streams", s.handleStartStream)
	router.GET("/streams", s.handleListStreams)
	router.DELETE("/streams/:id", s.handleCancelStream)

	s.http = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	return s
}

// Handler returns the root HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe runs the HTTP server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and cancels running streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.engine.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Metrics().Snapshot())
}

func (s *Server) handleSample(c *gin.Context) {
	kind := model.EntityKind(c.Param("kind"))
	record, err := s.engine.SampleEntity(kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// streamQuery reads rate, duration and count query parameters, filling
// unset ones from the configured defaults.
func (s *Server) streamQuery(c *gin.Context, kind model.EntityKind) (stream.Config, error) {
	cfg := stream.Config{
		Kind:     kind,
		Rate:     s.cfg.DefaultRate,
		Duration: s.cfg.DefaultDuration,
	}

	if v := c.Query("rate"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, err
		}
		cfg.Rate = r
	}
	if v := c.Query("duration"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, err
		}
		cfg.Duration = time.Duration(secs * float64(time.Second))
	}
	if v := c.Query("count"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, err
		}
		cfg.MaxCount = n
	}
	return cfg, nil
}

// handleStream serves a foreground NDJSON stream. The response is written
// one line per record with a flush after each, and the stream is cancelled
// when the client disconnects.
func (s *Server) handleStream(c *gin.Context) {
	cfg, err := s.streamQuery(c, model.EntityKind(c.Param("kind")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := s.engine.StartStream(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer st.Cancel()

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("X-Stream-ID", st.ID)
	c.Status(http.StatusOK)

	em := stream.NewEmitter(c.Writer)
	written, err := em.Emit(c.Request.Context(), st)
	if err != nil {
		s.log.Debug("stream client gone",
			zap.String("stream_id", st.ID),
			zap.Int64("written", written),
			zap.Error(err),
		)
	}
}

// startRequest is the body of a background stream request.
type startRequest struct {
	Kind     model.EntityKind `json:"entity_kind" binding:"required"`
	Rate     float64          `json:"rate"`
	Duration float64          `json:"duration_seconds"`
	MaxCount int64            `json:"max_count"`
}

// handleStartStream starts a background stream. Records are drained
// internally; delivery happens through the engine's sink, so the endpoint
// is only useful with a broker configured or for load exercises.
func (s *Server) handleStartStream(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := stream.Config{
		Kind:     req.Kind,
		Rate:     req.Rate,
		Duration: time.Duration(req.Duration * float64(time.Second)),
		MaxCount: req.MaxCount,
	}
	if cfg.Rate == 0 {
		cfg.Rate = s.cfg.DefaultRate
	}
	if cfg.Duration == 0 {
		cfg.Duration = s.cfg.DefaultDuration
	}

	st, err := s.engine.StartStream(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Drain so the producer never blocks on an unread channel.
	go func() {
		for range st.Records() {
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"stream_id":   st.ID,
		"entity_kind": cfg.Kind,
		"rate":        cfg.Rate,
		"duration":    cfg.Duration.Seconds(),
	})
}

type streamStatus struct {
	StreamID string           `json:"stream_id"`
	Kind     model.EntityKind `json:"entity_kind"`
	Rate     float64          `json:"rate"`
	Emitted  int64            `json:"events_emitted"`
	Started  time.Time        `json:"started_at"`
}

func (s *Server) handleListStreams(c *gin.Context) {
	active := s.engine.ActiveStreams()
	out := make([]streamStatus, 0, len(active))
	for _, st := range active {
		out = append(out, streamStatus{
			StreamID: st.ID,
			Kind:     st.Config().Kind,
			Rate:     st.Config().Rate,
			Emitted:  st.Emitted(),
			Started:  st.Started(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"streams": out})
}

func (s *Server) handleCancelStream(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.CancelStream(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream_id": id, "status": "cancelled"})
}
