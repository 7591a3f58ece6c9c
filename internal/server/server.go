package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dlms-org/apiserver/config"
	"github.com/dlms-org/apiserver/internal/db"
	"github.com/dlms-org/apiserver/internal/handlers"
	"github.com/dlms-org/apiserver/internal/logging"
	"github.com/dlms-org/apiserver/internal/metrics"
	"github.com/dlms-org/apiserver/internal/mq"
	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/internal/storage"
	"github.com/dlms-org/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     zerolog.Logger
}

// New connects to the database and the optional broker and object store,
// then builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	documents, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = queue.Close()
		_ = dbConn.Close()
		return nil, err
	}

	opts := []services.Option{services.WithLogger(logger), services.WithMetrics(m)}
	if queue != nil {
		opts = append(opts, services.WithEvents(queue))
	} else {
		logger.Info().Msg("message broker disabled, domain events are not published")
	}
	var documentStore services.DocumentStore
	if documents != nil {
		documentStore = documents
	} else {
		logger.Info().Msg("object storage disabled, renewal document uploads are rejected")
	}

	userRepo := store.NewUserRepository(dbConn)
	examRepo := store.NewExamRepository(dbConn)
	paymentRepo := store.NewPaymentRepository(dbConn)
	licenseRepo := store.NewLicenseRepository(dbConn)

	eligibility := services.NewEligibilityService(userRepo, examRepo, paymentRepo, licenseRepo, opts...)
	svc := handlers.Services{
		Users:       services.NewUserService(userRepo),
		Exams:       services.NewExamService(examRepo, userRepo, cfg.License.PassingScore, opts...),
		Payments:    services.NewPaymentService(paymentRepo, userRepo, opts...),
		Eligibility: eligibility,
		Licenses:    services.NewLicenseService(licenseRepo, paymentRepo, eligibility, cfg.License.ValidityYears, opts...),
		Renewals: services.NewRenewalService(
			store.NewRenewalRepository(dbConn), licenseRepo, documentStore, cfg.License.ValidityYears, opts...,
		),
		Violations: services.NewViolationService(store.NewViolationRepository(dbConn), licenseRepo, opts...),
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		m.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Handle("/metrics", metrics.Handler(registry))
	handlers.Mount(router, svc, cfg.Auth.JWTSecret)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if mqErr := s.mq.Close(); mqErr != nil {
		s.logger.Warn().Err(mqErr).Msg("failed to close message broker")
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
