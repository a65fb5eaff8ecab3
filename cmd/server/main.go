package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simplici0/budgets/internal/catalog"
	"github.com/Simplici0/budgets/internal/config"
	"github.com/Simplici0/budgets/internal/db"
	"github.com/Simplici0/budgets/internal/logging"
	"github.com/Simplici0/budgets/internal/migrations"
	"github.com/Simplici0/budgets/internal/seed"
	"github.com/Simplici0/budgets/internal/service"
	"github.com/Simplici0/budgets/internal/storage"
	"github.com/Simplici0/budgets/internal/storage/postgres"
	"github.com/Simplici0/budgets/internal/storage/sqlite"
)

type server struct {
	budgets *service.BudgetService
	log     *slog.Logger
}

// stores bundles the two store implementations of one backend.
type stores struct {
	budgets storage.BudgetStore
	catalog catalog.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.budgets.Close()
	log.Info("database ready", "driver", cfg.DBDriver, "env", cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	learner := catalog.NewLearner(st.catalog,
		catalog.WithLogger(log),
		catalog.WithMetrics(catalog.NewMetrics(reg)),
	)
	svc := service.NewBudgetService(st.budgets, st.catalog, learner,
		service.WithLogger(log),
		service.WithMetrics(service.NewMetrics(reg)),
	)

	if cfg.SeedEnabled() {
		stats, err := seed.Run(ctx, st.catalog)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("catalog seeded", "inserts", stats.Inserts, "existing", stats.Existing)
	}

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	srv := &server{budgets: svc, log: log}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Info("graceful shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		sqlDB, err := db.OpenPostgresSQL(cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		err = migrations.Up(sqlDB, migrations.Postgres)
		sqlDB.Close()
		if err != nil {
			return stores{}, fmt.Errorf("run database migrations: %w", err)
		}

		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		store := postgres.New(pool)
		return stores{budgets: store, catalog: store}, nil

	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return stores{}, err
		}
		if err := migrations.Up(database, migrations.SQLite); err != nil {
			database.Close()
			return stores{}, fmt.Errorf("run database migrations: %w", err)
		}
		store := sqlite.New(database)
		return stores{budgets: store, catalog: store}, nil
	}
}

func (s *server) routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", s.handleBudgetsList)
		r.Post("/", s.handleBudgetCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleBudgetGet)
			r.Put("/", s.handleBudgetSave)
			r.Delete("/", s.handleBudgetDelete)
			r.Get("/summary", s.handleBudgetSummary)

			r.Post("/items", s.handleItemAdd)
			r.Patch("/items/{itemID}", s.handleItemUpdate)
			r.Delete("/items/{itemID}", s.handleItemRemove)

			r.Put("/percentages", s.handlePercentagesSet)
			r.Put("/adjusted", s.handleAdjustedSet)
			r.Post("/reset-price", s.handlePriceReset)

			r.Post("/archive", s.handleArchive)
			r.Post("/restore", s.handleRestore)
			r.Post("/duplicate", s.handleDuplicate)
		})
	})

	r.Get("/catalog", s.handleCatalogList)
	r.Get("/catalog/suggestions", s.handleCatalogSuggestions)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requestLogger logs one line per request with its status and duration.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.log.Error("request failed", attrs...)
		case status >= http.StatusBadRequest:
			s.log.Warn("request rejected", attrs...)
		default:
			s.log.Info("request ok", attrs...)
		}
	})
}
