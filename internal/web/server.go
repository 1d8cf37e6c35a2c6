package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/domain"
	"github.com/vitos/crypto_prices_etl/internal/usecase"
	"go.uber.org/zap"
)

const maxListLimit = 500

type Server struct {
	router       *http.ServeMux
	server       *http.Server
	repo         domain.SnapshotRepository
	pipeline     *usecase.PipelineService
	hub          *CycleHub
	defaultLimit int
	logger       *zap.Logger
}

func NewServer(
	port int,
	repo domain.SnapshotRepository,
	pipeline *usecase.PipelineService,
	defaultLimit int,
	logger *zap.Logger,
) *Server {
	if defaultLimit <= 0 || defaultLimit > maxListLimit {
		defaultLimit = 50
	}
	s := &Server{
		router:       http.NewServeMux(),
		repo:         repo,
		pipeline:     pipeline,
		hub:          NewCycleHub(logger),
		defaultLimit: defaultLimit,
		logger:       logger,
	}
	pipeline.OnCycle(s.hub.Broadcast)
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Pipeline
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /ws/cycles", s.hub.ServeWS)

	// Snapshots
	s.router.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	s.router.HandleFunc("GET /api/snapshots/{coin}", s.handleCoinHistory)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting status server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
