// Package app wires together the repositories, the wallet engine, the auth
// pipeline, the event bus, the AML analyzer, and the outbound provider
// adapter into the chi.Router this system exposes, the way the teacher's
// own internal/app/wire.go composes its services into routes.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/musig5344/ocasino/internal/aml"
	"github.com/musig5344/ocasino/internal/auth"
	"github.com/musig5344/ocasino/internal/cache"
	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/eventbus"
	"github.com/musig5344/ocasino/internal/guard"
	"github.com/musig5344/ocasino/internal/handler"
	"github.com/musig5344/ocasino/internal/infra"
	"github.com/musig5344/ocasino/internal/provider"
	"github.com/musig5344/ocasino/internal/repository"
	"github.com/musig5344/ocasino/internal/wallet"
)

// amlRetryAttempts/amlRetryBaseDelay bound the AML analyzer's retry before
// an event is dead-lettered (spec §4.6.4 "bounded exponential backoff").
const (
	amlRetryAttempts  = 5
	amlRetryBaseDelay = 200 * time.Millisecond

	// eventBusShards mirrors the teacher's worker-pool sizing convention
	// (small, fixed pool rather than one goroutine per event).
	eventBusShards = 8

	// breakerFailThreshold/breakerResetTimeout configure the circuit
	// breaker wrapping the outbound provider adapter.
	breakerFailThreshold = 5
	breakerResetTimeout  = 30 * time.Second

	providerBreakerKey = "game-provider"
)

// RouterDeps holds everything NewRouter needs to assemble the HTTP surface.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	Config *infra.Config
}

// NewRouter assembles the chi.Router with every route and middleware this
// system owns, and starts the in-process event bus the AML analyzer
// subscribes to.
func NewRouter(ctx context.Context, deps RouterDeps) (chi.Router, error) {
	pool := deps.Pool
	logger := deps.Logger
	cfg := deps.Config

	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be base64-encoded 32 bytes")
	}
	cipher, err := icrypto.NewAmountCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build amount cipher: %w", err)
	}

	thresholds, err := cfg.LargeValueThresholds()
	if err != nil {
		return nil, fmt.Errorf("parse aml large value thresholds: %w", err)
	}
	aml.SetLargeValueThresholds(thresholds)

	store := newCacheStore(cfg, logger)

	// Repositories
	walletRepo := repository.NewWalletRepository()
	txRepo := repository.NewTransactionRepository()
	outboxRepo := repository.NewOutboxRepository()
	partnerRepo := repository.NewPartnerRepository()
	apiKeyRepo := repository.NewApiKeyRepository()
	amlRepo := repository.NewAMLRepository()

	// Wallet engine
	engine := wallet.NewEngine(walletRepo, txRepo, outboxRepo, cipher)

	// Auth pipeline
	pipeline := auth.NewPipeline(partnerRepo, apiKeyRepo, pool, store)

	// Event bus: every committed wallet transaction is published here for
	// in-process fan-out (chiefly to the AML analyzer), alongside the
	// durable outbox row the engine writes in the same DB transaction.
	bus := eventbus.NewBus(eventBusShards, cfg.EventQueueCapacity/eventBusShards+1, logger)

	analyzer := aml.NewAnalyzer(pool, txRepo, amlRepo, outboxRepo, cipher)
	onAMLPermanentFailure := func(ctx context.Context, event domain.OutboxDraft, failErr error) {
		logger.Error("aml analyzer permanently failed, dead-lettering event",
			"event_id", event.EventID, "event_type", event.EventType, "error", failErr)

		tx, beginErr := pool.Begin(ctx)
		if beginErr != nil {
			logger.Error("dead-letter: begin transaction failed", "error", beginErr)
			return
		}
		defer tx.Rollback(ctx)

		deadLetter := domain.NewAMLDeadLetterEvent(event, failErr.Error())
		if insertErr := outboxRepo.Insert(ctx, tx, deadLetter); insertErr != nil {
			logger.Error("dead-letter: insert failed", "error", insertErr)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			logger.Error("dead-letter: commit failed", "error", commitErr)
		}
	}
	bus.Subscribe(domain.EventWalletTransactionCreated,
		eventbus.WithRetry(analyzer.Handle, amlRetryAttempts, amlRetryBaseDelay, onAMLPermanentFailure))
	bus.Start(ctx)

	// Outbound game-provider adapter, circuit-broken.
	breaker := guard.NewCircuitBreaker(breakerFailThreshold, breakerResetTimeout)
	var settlement *provider.HTTPAdapter
	if cfg.ProviderBaseURL != "" {
		settlement = provider.NewHTTPAdapter(cfg.ProviderBaseURL, cfg.ProviderHMACSecret, providerBreakerKey, breaker, 5*time.Second)
	}

	// Handlers
	walletHandler := handler.NewWalletHandler(pool, walletRepo, engine).
		WithEventBus(bus).
		WithOperationDeadline(cfg.OperationDeadline)
	if settlement != nil {
		walletHandler = walletHandler.WithSettlementNotifier(settlement, logger)
	}

	// Router
	r := chi.NewRouter()

	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.JSONContentType)

	ipLimiter := guard.NewRateLimiter(cfg.DefaultRateLimit, time.Minute)
	r.Use(handler.RateLimitMiddleware(ipLimiter, handler.ClientIP))

	r.Get("/healthz", handler.HealthHandler(pool))

	r.Group(func(r chi.Router) {
		r.Use(pipeline.Middleware(auth.Options{
			SkipPaths:          cfg.AuthExcludePaths,
			EnforceIPAllowlist: cfg.AllowedIPEnforcement,
			RequirePermission:  requiredWalletPermission,
		}))

		r.Route("/wallet/{player}", func(r chi.Router) {
			r.Get("/balance", walletHandler.GetBalance)
			r.Post("/deposit", walletHandler.Deposit)
			r.Post("/withdraw", walletHandler.Withdraw)
			r.Post("/bet", walletHandler.Bet)
			r.Post("/win", walletHandler.Win)
			r.Post("/rollback", walletHandler.Rollback)
		})
	})

	return r, nil
}

// newCacheStore builds the auth pipeline's lookup cache: Redis when
// cfg.RedisURL parses, falling back to the in-memory store otherwise (dev
// convenience — correctness never depends on which one is active).
func newCacheStore(cfg *infra.Config, logger *slog.Logger) cache.Store {
	if cfg.RedisURL == "" {
		return cache.NewInMemoryStore()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, falling back to in-memory cache", "error", err)
		return cache.NewInMemoryStore()
	}
	return cache.NewRedisStore(redis.NewClient(opts))
}

// requiredWalletPermission derives the wallet:<op> permission string from
// the request's method and trailing path segment (deposit/withdraw/bet/win
// /rollback/balance), the one lookup per request auth.Options expects.
func requiredWalletPermission(r *http.Request) string {
	op := lastPathSegment(r.URL.Path)
	if r.Method == http.MethodGet && op == "balance" {
		return "wallet:read"
	}
	return "wallet:" + op
}

func lastPathSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
