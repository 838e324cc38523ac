package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/eleven-am/empire/internal/goals"
	"github.com/eleven-am/empire/internal/logger"
	"github.com/eleven-am/empire/internal/metrics"
	"github.com/eleven-am/empire/internal/orm"
)

// GoalService is the subset of goals.Service the handlers call.
type GoalService interface {
	List(ctx context.Context, uid, longTermID int64) ([]goals.GoalWithCategoryIDs, error)
	Create(ctx context.Context, uid int64, in goals.CreateInput) (*goals.Goal, error)
	Update(ctx context.Context, uid, id int64, statement string) (*goals.Goal, error)
	Delete(ctx context.Context, uid, id int64) error
	Link(ctx context.Context, uid, id int64, categoryIDs []int64) error
	Unlink(ctx context.Context, uid, id int64, categoryIDs []int64) error
	Categories(ctx context.Context, uid, id int64) ([]orm.Row, error)
	LongTerms(ctx context.Context, uid int64) ([]goals.LongTerm, error)
}

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	IdentityHeader  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the goal service.
type Server struct {
	config  Config
	goals   GoalService
	db      Pinger
	metrics *metrics.Metrics
	log     logger.Logger
	router  *mux.Router
}

// New wires routes for svc. metrics may be nil.
func New(config Config, svc GoalService, db Pinger, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.HTTP()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{config: config, goals: svc, db: db, metrics: m, log: log}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestID, s.observe)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()
	api.Use(HeaderIdentity(s.config.IdentityHeader))

	api.HandleFunc("/goals", s.handleListGoals).Methods(http.MethodGet)
	api.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id}", s.handleUpdateGoal).Methods(http.MethodPatch)
	api.HandleFunc("/goals/{id}", s.handleDeleteGoal).Methods(http.MethodDelete)
	api.HandleFunc("/goals/{id}/categories", s.handleListGoalCategories).Methods(http.MethodGet)
	api.HandleFunc("/goals/{id}/categories", s.handleLinkCategories).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id}/categories", s.handleUnlinkCategories).Methods(http.MethodDelete)
	api.HandleFunc("/long-terms", s.handleListLongTerms).Methods(http.MethodGet)

	return router
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
