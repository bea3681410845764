package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/leaseworks/internal/cache"
	"github.com/Simplici0/leaseworks/internal/config"
	"github.com/Simplici0/leaseworks/internal/db"
	"github.com/Simplici0/leaseworks/internal/migrations"
	"github.com/Simplici0/leaseworks/internal/quoting"
	"github.com/Simplici0/leaseworks/internal/seed"
	"github.com/Simplici0/leaseworks/internal/store"
)

type server struct {
	svc *quoting.Service
	log *slog.Logger
}

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			logger.Error("failed to run database migrations", "error", err)
			os.Exit(1)
		}
	}

	st := store.New(database)
	stats, err := seed.Run(ctx, st, seed.Config{RateTablesPath: cfg.RateTablesPath})
	if err != nil {
		logger.Error("failed to seed leasers", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded leasers", "inserted", stats.Inserts, "skipped", stats.Skipped)

	var c cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, "leaseworks:")
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		c = rc
	}

	srv := &server{
		svc: quoting.New(st, c, logger, cfg.CacheTTL),
		log: logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", httpServer.Addr, "env", cfg.AppEnv)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/leasers", s.handleLeasersList)
		r.Post("/leasers", s.handleLeaserSave)
		r.Get("/leasers/{id}", s.handleLeaserGet)

		r.Post("/calc/monthly", s.handleCalcMonthly)
		r.Post("/calc/margin", s.handleCalcMargin)
		r.Post("/calc/fleet", s.handleCalcFleet)
		r.Post("/calc/discount", s.handleCalcDiscount)

		r.Post("/worksheets", s.handleWorksheetCreate)
		r.Route("/worksheets/{id}", func(r chi.Router) {
			r.Get("/", s.handleWorksheetGet)
			r.Delete("/", s.handleWorksheetDelete)
			r.Put("/draft", s.handleWorksheetDraft)
			r.Post("/lines", s.handleWorksheetAdd)
			r.Post("/lines/{lineID}/edit", s.handleWorksheetEdit)
			r.Patch("/lines/{lineID}", s.handleWorksheetQuantity)
			r.Delete("/lines/{lineID}", s.handleWorksheetRemove)
			r.Post("/cancel", s.handleWorksheetCancel)
			r.Get("/totals", s.handleWorksheetTotals)
		})

		r.Get("/offers", s.handleOffersList)
		r.Post("/offers", s.handleOfferCreate)
		r.Get("/offers/{id}", s.handleOfferGet)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
