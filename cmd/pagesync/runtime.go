package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"pagesync/internal/app"
	"pagesync/internal/blob"
	"pagesync/internal/config"
	"pagesync/internal/cursor"
	"pagesync/internal/export"
	"pagesync/internal/images"
	"pagesync/internal/notion"
	"pagesync/internal/search"
	"pagesync/internal/store"
	"pagesync/internal/syncer"
)

// runtime holds every wired backend for one command invocation.
type runtime struct {
	cfg     config.Config
	db      *sql.DB
	service *app.Service

	searcher *search.Meili
	cursors  *cursor.RedisStore
}

// setup wires config, database, object store, and the optional backends.
// Search and the sync cursor stay disabled when unconfigured; everything
// else is required.
func setup(ctx context.Context) (*runtime, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}
	dataStore := store.NewPostgresStore(db)

	blobStore, err := blob.NewMinioStore(cfg.BlobEndpoint, cfg.BlobAccessKey, cfg.BlobSecretKey, cfg.BlobBucket, cfg.BlobBaseURL, cfg.BlobUseSSL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store setup failed: %w", err)
	}

	engine := syncer.New(dataStore, images.NewResolver(blobStore))
	if strings.TrimSpace(cfg.NotionToken) != "" {
		engine.UseNotion(notion.NewClient(cfg.NotionToken))
	}

	rt := &runtime{
		cfg: cfg,
		db:  db,
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		rt.searcher = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		engine.UseIndexer(rt.searcher)
	}

	exporter := export.NewService(dataStore)
	rt.service = app.NewService(engine, dataStore, blobStore, exporter, cfg.SyncToken, cfg.NotionDatabaseID, cfg.DocsDir, cfg.SyncWindow)
	if rt.searcher != nil {
		rt.service.UseSearcher(rt.searcher)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cursors, err := cursor.NewRedisStore(cfg.RedisURL)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.cursors = cursors
		rt.service.UseCursors(cursors)
	}

	return rt, nil
}

func (rt *runtime) close() {
	if rt.cursors != nil {
		if err := rt.cursors.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if rt.searcher != nil {
		rt.searcher.Close()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Printf("close database: %v", err)
		}
	}
}
