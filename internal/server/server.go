package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/revenac/apiserver/config"
	"github.com/revenac/apiserver/internal/cache"
	"github.com/revenac/apiserver/internal/db"
	"github.com/revenac/apiserver/internal/handlers"
	"github.com/revenac/apiserver/internal/logging"
	"github.com/revenac/apiserver/internal/metrics"
	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/internal/storage"
	"github.com/revenac/apiserver/internal/store"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server, router and the backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	queue      *mq.MQ
	logger     zerolog.Logger
}

// New constructs a Server. Redis, object storage and the message queue are
// optional and skipped when not configured.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	metrics.MustRegister()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Server{db: dbConn, logger: logger}

	s.redis, err = cache.Open(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open redis: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.queue, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	earnCodeRepo := store.NewEarnCodeRepository(dbConn)
	rewardRepo := store.NewRewardRepository(dbConn)
	redemptionRepo := store.NewRedemptionRepository(dbConn)
	ledgerRepo := store.NewLedgerRepository(dbConn)
	analyticsRepo := store.NewAnalyticsRepository(dbConn)

	var (
		events      services.EventPublisher
		images      services.ImageStore
		invalidator services.LeaderboardInvalidator
		ranking     services.LeaderboardStore
		limiter     handlers.Limiter
	)
	if s.queue != nil {
		events = s.queue
	}
	if objects != nil {
		images = objects
	}
	if s.redis != nil {
		lb := cache.NewLeaderboardCache(s.redis, cfg.Redis.LeaderboardTTL)
		invalidator = lb
		ranking = lb
		limiter = cache.NewRateLimiter(s.redis)
	}

	userService := services.NewUserService(userRepo)
	ledgerService := services.NewLedgerService(ledgerRepo, events, invalidator, cfg.Ledger.CarbonPerItemKg, logger)
	codeService := services.NewCodeService(earnCodeRepo, cfg.Ledger.ItemValues, events, logger)
	rewardService := services.NewRewardService(rewardRepo, images, logger)
	leaderboardService := services.NewLeaderboardService(userRepo, ranking, logger)
	walletService := services.NewWalletService(userRepo, earnCodeRepo, redemptionRepo)
	analyticsService := services.NewAnalyticsService(analyticsRepo)

	authMiddleware := handlers.RequireAuth(cfg.JWTSecret)
	claimLimit := handlers.RateLimitUser(limiter, "claim", cfg.Ledger.ClaimRateLimit, cfg.Ledger.ClaimRateWindow, logger)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, walletService, leaderboardService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.JWTSecret)
	})
	router.Route("/codes", func(r chi.Router) {
		handlers.CodeRouter(r, ledgerHandler, authMiddleware, claimLimit)
	})
	router.Route("/rewards", func(r chi.Router) {
		handlers.RewardRouter(r, rewardService, ledgerService, authMiddleware)
	})
	router.With(authMiddleware).Get("/wallet", ledgerHandler.Wallet)
	router.Get("/leaderboard", ledgerHandler.Leaderboard)
	router.Route("/machines", func(r chi.Router) {
		handlers.MachineRouter(r, codeService, cfg.MachineAPIKey)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, rewardService, analyticsService, userService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close mq")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close redis")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close database")
		}
	}
}
