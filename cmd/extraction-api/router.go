// Package main provides the extraction API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platewise/extraction-engine/cmd/extraction-api/handlers"
	"github.com/platewise/extraction-engine/cmd/extraction-api/middleware"
	"github.com/platewise/extraction-engine/internal/config"
	"github.com/platewise/extraction-engine/internal/convert"
	"github.com/platewise/extraction-engine/internal/draft"
	"github.com/platewise/extraction-engine/internal/engine"
	"github.com/platewise/extraction-engine/internal/extract"
	"github.com/platewise/extraction-engine/internal/fetch"
	"github.com/platewise/extraction-engine/internal/observability"
	"github.com/platewise/extraction-engine/internal/token"
)

// buildStore opens the configured draft backend.
func buildStore(cfg *config.Config) (draft.Store, func() error, error) {
	if cfg.Drafts.Backend == "redis" {
		store, err := draft.NewRedisStore(draft.RedisConfig{
			Addr:     cfg.Drafts.Redis.Addr,
			Password: cfg.Drafts.Redis.Password,
			DB:       cfg.Drafts.Redis.DB,
			PoolSize: cfg.Drafts.Redis.PoolSize,
			Prefix:   cfg.Drafts.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	driver := "sqlite3"
	if cfg.Database.Driver == "postgres" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.Driver == "postgres" {
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.Postgres.ConnMaxLifetime)
	} else {
		db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
	}
	if err := draft.Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return draft.NewSQLStore(db), db.Close, nil
}

// NewRouter wires the service graph and returns the HTTP handler plus a
// cleanup func for the store connection.
func NewRouter(logger *observability.Logger, cfg *config.Config) (http.Handler, func() error, error) {
	store, cleanup, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	issuer, err := token.NewIssuer(cfg.Tokens.Secret, cfg.TokenTTL())
	if err != nil {
		return nil, nil, err
	}

	llm, err := engine.NewOpenAIEngine(engine.Config{
		APIKey:  cfg.Engine.APIKey,
		Model:   cfg.Engine.Model,
		BaseURL: cfg.Engine.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryBackoff: cfg.Fetch.RetryBackoff,
	})

	pipeline := extract.NewPipeline(
		logger, fetcher, llm, convert.NewRecipeConverter(),
		store, issuer, cfg.Drafts.TTL,
	)
	orchestrator := extract.NewOrchestrator(logger, pipeline)

	extractionHandler := handlers.NewExtractionHandler(logger, orchestrator)
	draftHandler := handlers.NewDraftHandler(logger, store, issuer)

	authKeys := make(map[string]uuid.UUID, len(cfg.Auth.Keys))
	for key, owner := range cfg.Auth.Keys {
		id, err := uuid.Parse(owner)
		if err != nil {
			return nil, nil, fmt.Errorf("auth key %q maps to malformed owner id %q", key, owner)
		}
		authKeys[key] = id
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"extraction-engine"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Draft retrieval is token-gated, not session-gated: the access
		// token in the query string is the capability.
		r.Get("/drafts/{draftID}", draftHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{
				Enabled: cfg.Auth.Enabled,
				Keys:    authKeys,
			}))

			r.Post("/extractions", extractionHandler.Extract)
			r.Post("/extractions/stream", extractionHandler.Stream)
			r.Delete("/drafts/{draftID}", draftHandler.Delete)
		})
	})

	return r, cleanup, nil
}
