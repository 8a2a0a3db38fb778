// Package webhook exposes the alert endpoint and health probes over HTTP.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adrien-king/questrade-bot/internal/engine"
	"github.com/adrien-king/questrade-bot/internal/signal"
)

// maxBodyLog caps how much of the raw alert body lands in the debug log.
const maxBodyLog = 2000

// Health describes the process facts reported by GET /health.
type Health struct {
	DryRun     bool   `json:"dry_run"`
	Ledger     string `json:"ledger"`
	AuditJSONL bool   `json:"audit_jsonl"`
}

// Server wires the router, decision engine, and middleware.
type Server struct {
	R      *gin.Engine
	engine *engine.Engine
	log    zerolog.Logger
	health Health
}

// NewServer builds the gin router around a decision engine.
func NewServer(eng *engine.Engine, log zerolog.Logger, health Health) *Server {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()

	// Request logging
	g.Use(func(cn *gin.Context) {
		start := time.Now()
		cn.Next()
		log.Info().
			Str("method", cn.Request.Method).
			Str("path", cn.Request.URL.Path).
			Int("status", cn.Writer.Status()).
			Str("ip", cn.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
	g.Use(gin.Recovery())

	s := &Server{R: g, engine: eng, log: log, health: health}

	g.GET("/", func(cn *gin.Context) { cn.String(http.StatusOK, "OK") })
	g.GET("/health", s.getHealth)
	g.POST("/tv", s.postAlert)
	g.GET("/tv", func(cn *gin.Context) {
		cn.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "Use POST with JSON body"})
	})

	return s
}

func (s *Server) getHealth(cn *gin.Context) {
	cn.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"dry_run":     s.health.DryRun,
		"ledger":      s.health.Ledger,
		"audit_jsonl": s.health.AuditJSONL,
	})
}

func (s *Server) postAlert(cn *gin.Context) {
	body, err := io.ReadAll(cn.Request.Body)
	if err != nil {
		cn.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read body"})
		return
	}
	if len(body) > 0 {
		truncated := body
		if len(truncated) > maxBodyLog {
			truncated = truncated[:maxBodyLog]
		}
		s.log.Debug().Str("body", string(truncated)).Msg("alert raw body")
	}

	var payload signal.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		cn.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad_json", "detail": err.Error()})
		return
	}

	dec, err := s.engine.Handle(cn.Request.Context(), payload)
	if err != nil {
		cn.JSON(statusFor(err), dec)
		return
	}
	cn.JSON(http.StatusOK, dec)
}

// statusFor maps engine error kinds onto HTTP codes: rejects are the
// caller's fault, throttles ask for a later retry, upstream and ledger
// failures are server-side.
func statusFor(err error) int {
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		return http.StatusInternalServerError
	}
	switch engErr.Kind {
	case engine.KindInput:
		return http.StatusBadRequest
	case engine.KindThrottle:
		return http.StatusTooManyRequests
	case engine.KindSizing:
		return http.StatusUnprocessableEntity
	case engine.KindQuote, engine.KindExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
