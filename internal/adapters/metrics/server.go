package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerSummarizer is the read side of the ledger the status server exposes.
type LedgerSummarizer interface {
	Summary() domain.LedgerSummary
}

// Server is the optional status HTTP server: /metrics, /healthz and /ledger.
type Server struct {
	echo     *echo.Echo
	addr     string
	recorder *Recorder
	ledger   LedgerSummarizer
	// staleAfter marks the bot unhealthy when no cycle completed for this long.
	staleAfter time.Duration
	now        func() time.Time
}

// NewServer wires the routes. staleAfter <= 0 disables the staleness check.
func NewServer(addr string, recorder *Recorder, ledger LedgerSummarizer, staleAfter time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		addr:       addr,
		recorder:   recorder,
		ledger:     ledger,
		staleAfter: staleAfter,
		now:        time.Now,
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{})))
	e.GET("/healthz", s.health)
	e.GET("/ledger", s.ledgerSummary)
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves in a goroutine until Stop.
func (s *Server) Start() {
	go func() {
		slog.Info("status server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics.Server.Stop: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastCycle *time.Time `json:"last_cycle,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	last := s.recorder.LastCycle()
	if last.IsZero() {
		return c.JSON(http.StatusOK, healthResponse{Status: "starting"})
	}
	if s.staleAfter > 0 && s.now().Sub(last) > s.staleAfter {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "stale", LastCycle: &last})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", LastCycle: &last})
}

func (s *Server) ledgerSummary(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, s.ledger.Summary())
}
