// Package transporthttp exposes the pipeline over a small JSON API.
package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bhavcast/internal/calendar"
	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/model"
	"bhavcast/internal/pipeline"
	"bhavcast/internal/predict"
	"bhavcast/internal/store"
)

type Server struct {
	addr   string
	svc    *pipeline.Service
	runs   *store.Store
	router *gin.Engine
}

func NewServer(addr string, svc *pipeline.Service, runs *store.Store) (*Server, error) {
	if svc == nil {
		return nil, errors.New("pipeline service is required")
	}
	if addr == "" {
		addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{addr: addr, svc: svc, runs: runs, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.POST("/predict", s.handlePredict)
	api.POST("/backtest", s.handleBacktest)
	api.POST("/train", s.handleTrain)
	api.GET("/predictions/latest", s.handleLatestPredictions)
	api.GET("/backtest/latest", s.handleLatestBacktest)
	api.GET("/runs", s.handleRuns)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "horizon": s.svc.Horizon()})
}

func (s *Server) handlePredict(c *gin.Context) {
	out, err := s.svc.RunForecast(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleBacktest(c *gin.Context) {
	out, err := s.svc.RunBacktest(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleTrain(c *gin.Context) {
	out, err := s.svc.BuildTrainingSet(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLatestPredictions(c *gin.Context) {
	records, runDate, err := s.svc.LatestForecasts()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_date": runDate.Format(market.DateLayout),
		"records":  records,
	})
}

func (s *Server) handleLatestBacktest(c *gin.Context) {
	rec, ok, err := s.svc.LatestBacktest(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no backtest runs recorded yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run store not configured"})
		return
	}
	kind := store.RunKind(c.DefaultQuery("kind", string(store.RunKindForecast)))
	if kind != store.RunKindForecast && kind != store.RunKindBacktest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be forecast or backtest"})
		return
	}
	limit := 20
	list, err := s.runs.ListRuns(c.Request.Context(), kind, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": list})
}

// abortWithError maps pipeline failures onto HTTP statuses: missing inputs
// are preconditions the operator must fix, not server faults.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrNoBars),
		errors.Is(err, model.ErrModelMissing),
		errors.Is(err, predict.ErrNoForecastFiles):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, calendar.ErrHolidaysUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Errorf("api request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Start runs the HTTP server, blocking until ctx cancels or serving fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http api listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
