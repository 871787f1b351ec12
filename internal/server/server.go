package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lostfound-board/apiserver/config"
	"github.com/lostfound-board/apiserver/internal/db"
	"github.com/lostfound-board/apiserver/internal/handlers"
	"github.com/lostfound-board/apiserver/internal/logging"
	"github.com/lostfound-board/apiserver/internal/mq"
	"github.com/lostfound-board/apiserver/internal/services"
	"github.com/lostfound-board/apiserver/internal/storage"
	"github.com/lostfound-board/apiserver/internal/store"
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     *slog.Logger
}

// Repositories is the persistence the server runs on.
type Repositories struct {
	Items services.ItemRepository
	Users services.UserRepository
}

// New wires the store, broker and object storage selected by cfg and builds
// the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	logger := slog.Default()

	s := &Server{logger: logger}
	repos, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	s.broker = broker

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	var images services.ImageStore
	if objects != nil {
		images = objects
	}
	var publisher services.EventPublisher
	if broker != nil {
		publisher = broker
	}

	handler, err := NewHandler(repos, images, publisher, cfg, logger)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	s.router = handler

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		slog.Int("port", port),
		slog.String("store", cfg.Store.Backend),
		slog.String("mq", cfg.MQ.Backend),
		slog.String("storage", cfg.Storage.Backend))
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return Repositories{
			Items: store.NewMemoryItemRepository(),
			Users: store.NewMemoryUserRepository(),
		}, nil
	case "", config.BackendPostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Repositories{}, err
		}
		s.db = conn
		return Repositories{
			Items: store.NewItemRepository(conn),
			Users: store.NewUserRepository(conn),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewHandler builds the API router over the given dependencies. images and
// publisher may be nil.
func NewHandler(
	repos Repositories,
	images services.ImageStore,
	publisher services.EventPublisher,
	cfg config.Config,
	logger *slog.Logger,
) (*chi.Mux, error) {
	opts := []services.Option{
		services.WithTimeout(cfg.Store.Timeout),
		services.WithLogger(logger),
		services.WithPublisher(publisher),
	}

	identity, err := services.NewIdentityService(repos.Users, services.IdentityConfig{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, opts...)
	if err != nil {
		return nil, err
	}
	itemService := services.NewItemService(repos.Items, images, opts...)
	claimService := services.NewClaimService(repos.Items, opts...)

	routes := func(r chi.Router) {
		r.Get("/healthz", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, identity)
		})
		r.Route("/items", func(r chi.Router) {
			handlers.ItemRouter(r, itemService, claimService, identity)
		})
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	routes(router)
	router.Route("/api", routes)
	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx is done and then releases the store and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("close broker", slog.Any("error", err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
