package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BerriAI/litellm-sub032/internal/api"
	"github.com/BerriAI/litellm-sub032/internal/config"
	"github.com/BerriAI/litellm-sub032/internal/db"
	dbmigrate "github.com/BerriAI/litellm-sub032/internal/db/migrate"
	"github.com/BerriAI/litellm-sub032/internal/guardrail"
	"github.com/BerriAI/litellm-sub032/internal/metrics"
	"github.com/BerriAI/litellm-sub032/internal/policy"
	"github.com/BerriAI/litellm-sub032/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "policy_config.yaml", "path to policy config YAML")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("loaded %d policies and %d attachments from config",
		len(cfg.Policies), len(cfg.Attachments))

	// Init DB (optional, skip if no database_url)
	var queries *db.Queries
	if cfg.GeneralSettings.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.GeneralSettings.DatabaseURL)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			log.Fatalf("ping database: %v", err)
		}
		log.Println("database connected")

		log.Println("running database migrations...")
		if err := dbmigrate.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations complete")

		queries = db.New(pool)
	}

	// Init guardrails (config-driven).
	guardrailRegistry := guardrail.NewRegistry()
	for _, gc := range cfg.Guardrails {
		g, err := guardrail.NewFromConfig(gc)
		if err != nil {
			log.Printf("warn: guardrail %q: %v", gc.Name, err)
			continue
		}
		guardrailRegistry.Register(g)
		log.Printf("guardrail registered: %s", g.Name())
	}

	// Policy store: DB-backed when available, otherwise config-only.
	var store *policy.Store
	if queries != nil {
		store = policy.NewStoreWithSource(queries)
		if err := store.Load(ctx); err != nil {
			log.Printf("warn: initial policy load: %v", err)
		}
	} else {
		store = policy.NewStore()
		store.LoadPolicies(cfg.Policies)
		store.LoadAttachments(cfg.Attachments)
	}

	validator := &policy.Validator{
		Guardrails: guardrailRegistry,
		Models:     cfg,
		Store:      store,
	}
	if queries != nil {
		validator.Aliases = queries
	}

	// Config-declared policies are validated at startup; errors are fatal
	// so a broken config never serves requests.
	if len(cfg.Policies) > 0 {
		result := validator.ValidateConfig(ctx, cfg.Policies, cfg.Attachments, false)
		for _, w := range result.Warnings {
			log.Printf("policy config warning [%s]: %s", w.PolicyName, w.Message)
		}
		if !result.Valid {
			for _, e := range result.Errors {
				log.Printf("policy config error [%s]: %s", e.PolicyName, e.Message)
			}
			log.Fatalf("policy config invalid: %d errors", len(result.Errors))
		}
	}

	m := metrics.New()
	m.SetActivePolicies(len(store.PolicyNames()))

	handlers := &api.Handlers{
		Config:     cfg,
		Store:      store,
		Validator:  validator,
		Guardrails: guardrailRegistry,
		Applier:    policy.NewApplier(store, guardrailRegistry),
		Metrics:    m,
	}
	if queries != nil {
		handlers.DB = queries
		handlers.Lifecycle = policy.NewLifecycle(store, queries)
	}

	// Background jobs.
	sched := scheduler.New()
	if queries != nil {
		interval := time.Duration(cfg.GeneralSettings.PolicyReloadInterval) * time.Second
		sched.Add(&scheduler.PolicyReloadJob{Store: store, Metrics: m}, interval)
	}
	sched.Start()

	if cfg.Metrics.Enabled {
		go metrics.ListenAndServe(ctx, m, cfg.Metrics.Port)
	}

	addr := fmt.Sprintf(":%d", cfg.GeneralSettings.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("shutting down...")
		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		cancel()
	}()

	log.Printf("policy engine listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
