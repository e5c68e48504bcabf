package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/courtside/trade-engine/internal/agreements"
	"github.com/courtside/trade-engine/internal/apply"
	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/metrics"
	"github.com/courtside/trade-engine/internal/negotiation"
	"github.com/courtside/trade-engine/internal/rules"
	"github.com/courtside/trade-engine/internal/trade"
)

func main() {
	// Load .env in development; ignore when absent.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st league.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = league.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = league.NewCachedStore(st, rdb, 30*time.Second, logger)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = league.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- League constants ---
	consts := loadConstants()
	if err := consts.Validate(); err != nil {
		slog.Error("invalid league configuration", "err", err)
		os.Exit(1)
	}

	// --- Services ---
	registry := rules.DefaultRegistry(consts)
	agrSvc := agreements.NewService(st, registry, consts)
	engine := apply.NewEngine(st, consts, logger)
	sessSvc := negotiation.NewService(st)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	tradeSvc := trade.NewService(st, consts, registry, agrSvc, engine, sessSvc, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trade-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time deal events.
		r.Get("/ws", wsHub.HandleWS)

		// Deal lifecycle.
		r.Post("/deals/validate", tradeSvc.ValidateDeal)
		r.Post("/deals/commit", tradeSvc.CommitDeal)
		r.Post("/deals/{dealID}/verify", tradeSvc.VerifyDeal)
		r.Post("/deals/{dealID}/execute", tradeSvc.ExecuteDeal)

		// Agreements and locks.
		r.Post("/agreements/gc", tradeSvc.GCAgreements)
		r.Get("/agreements", tradeSvc.ListAgreements)
		r.Get("/agreements/{dealID}", tradeSvc.GetAgreement)
		r.Get("/locks", tradeSvc.ListLocks)
		r.Get("/transactions", tradeSvc.ListTransactions)

		// Negotiation sessions.
		r.Post("/sessions", tradeSvc.CreateSession)
		r.Get("/sessions/{sessionID}", tradeSvc.GetSession)
		r.Post("/sessions/{sessionID}/messages", tradeSvc.AppendSessionMessage)
		r.Put("/sessions/{sessionID}/draft", tradeSvc.SetSessionDraft)
		r.Post("/sessions/{sessionID}/commit", tradeSvc.CommitSessionDraft)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trade-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trade-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trade-engine stopped")
}

// loadConstants builds league constants from the environment on top of the
// current-season defaults.
func loadConstants() league.Constants {
	draftYear := envInt("DRAFT_YEAR", time.Now().UTC().Year())
	c := league.DefaultConstants(draftYear)

	c.SeasonYear = envInt("SEASON_YEAR", c.SeasonYear)
	c.RosterLimit = envInt("ROSTER_LIMIT", c.RosterLimit)
	c.MaxPickYearsAhead = envInt("MAX_PICK_YEARS_AHEAD", c.MaxPickYearsAhead)
	c.StepienLookahead = envInt("STEPIEN_LOOKAHEAD", c.StepienLookahead)
	c.TradeDeadline = os.Getenv("TRADE_DEADLINE")

	if teams := os.Getenv("TEAM_IDS"); teams != "" {
		for _, t := range strings.Split(teams, ",") {
			if t = strings.TrimSpace(strings.ToUpper(t)); t != "" {
				c.TeamIDs = append(c.TeamIDs, t)
			}
		}
	}

	c.EnablePickRules = envBool("ENABLE_PICK_RULES", c.EnablePickRules)
	c.EnableEligibility = envBool("ENABLE_ELIGIBILITY", c.EnableEligibility)
	c.EnableSalaryMatching = envBool("ENABLE_SALARY_MATCHING", c.EnableSalaryMatching)
	return c
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
