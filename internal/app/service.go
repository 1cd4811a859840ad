// Package app wires the sync engine, backing store, and optional
// backends behind the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"pagesync/internal/blob"
	"pagesync/internal/cursor"
	"pagesync/internal/export"
	"pagesync/internal/model"
	"pagesync/internal/search"
	"pagesync/internal/store"
)

// SyncEngine is the reconciliation surface the service drives.
type SyncEngine interface {
	SyncPage(ctx context.Context, pageID string, force bool) (model.Outcome, model.Decision, error)
	SyncRange(ctx context.Context, databaseID string, start, end time.Time, force bool) (model.Tally, error)
	SyncLocalFile(ctx context.Context, path string, force bool) (model.Outcome, model.Decision, error)
	SyncLocalDir(ctx context.Context, dir string, force bool) (model.Tally, error)
}

// RecordStore is the read side of the backing store the HTTP surface
// exposes.
type RecordStore interface {
	FindByNaturalKey(ctx context.Context, naturalKey string) (store.Record, error)
	ListPublished(ctx context.Context) ([]store.Record, error)
	ListAll(ctx context.Context) ([]store.Record, error)
	Ping(ctx context.Context) error
}

type Exporter interface {
	ExportDir(ctx context.Context, dir string) (*export.Result, error)
}

type Searcher interface {
	Search(q string, limit int) ([]search.Hit, error)
	Healthy() bool
}

type CursorStore interface {
	Get(ctx context.Context, databaseID string) (cursor.State, error)
	Set(ctx context.Context, databaseID string, state cursor.State) error
}

type Service struct {
	engine   SyncEngine
	records  RecordStore
	blob     blob.Store
	exporter Exporter

	searcher Searcher
	cursors  CursorStore

	syncToken  string
	databaseID string
	docsDir    string
	syncWindow time.Duration
}

func NewService(engine SyncEngine, records RecordStore, blobStore blob.Store, exporter Exporter, syncToken, databaseID, docsDir string, syncWindow time.Duration) *Service {
	return &Service{
		engine:     engine,
		records:    records,
		blob:       blobStore,
		exporter:   exporter,
		syncToken:  syncToken,
		databaseID: databaseID,
		docsDir:    docsDir,
		syncWindow: syncWindow,
	}
}

// UseSearcher enables the search endpoint.
func (s *Service) UseSearcher(searcher Searcher) {
	s.searcher = searcher
}

// UseCursors enables incremental range syncs.
func (s *Service) UseCursors(cursors CursorStore) {
	s.cursors = cursors
}

func (s *Service) SyncToken() string {
	return s.syncToken
}

func (s *Service) PingStore(ctx context.Context) error {
	return s.records.Ping(ctx)
}

func (s *Service) PingBlob(ctx context.Context) error {
	if s.blob == nil {
		return fmt.Errorf("object store not configured")
	}
	return s.blob.Ping(ctx)
}

func (s *Service) SyncPage(ctx context.Context, pageID string, force bool) (model.Outcome, error) {
	if pageID == "" {
		return model.Outcome{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pageId is required", nil)
	}
	outcome, _, err := s.engine.SyncPage(ctx, pageID, force)
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// SyncRange reconciles the explicit window [start, end). A zero end
// means now.
func (s *Service) SyncRange(ctx context.Context, start, end time.Time, force bool) (model.Tally, error) {
	if s.databaseID == "" {
		return model.Tally{}, domainError(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "Remote database not configured", nil)
	}
	if end.IsZero() {
		end = time.Now()
	}
	if !start.Before(end) {
		return model.Tally{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "start must precede end", nil)
	}
	return s.engine.SyncRange(ctx, s.databaseID, start, end, force)
}

// SyncIncremental reconciles everything edited since the stored cursor,
// falling back to the configured window on the first run. The cursor
// advances only when every document in the batch succeeded.
func (s *Service) SyncIncremental(ctx context.Context, force bool) (model.Tally, error) {
	if s.databaseID == "" {
		return model.Tally{}, domainError(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "Remote database not configured", nil)
	}

	end := time.Now()
	start := end.Add(-s.syncWindow)
	if s.cursors != nil {
		state, err := s.cursors.Get(ctx, s.databaseID)
		switch {
		case err == nil:
			start = state.LastRunAt
		case errors.Is(err, cursor.ErrNoCursor):
		default:
			return model.Tally{}, fmt.Errorf("read sync cursor: %w", err)
		}
	}

	tally, err := s.engine.SyncRange(ctx, s.databaseID, start, end, force)
	if err != nil {
		return tally, err
	}

	// A batch with failures holds the cursor so the next incremental run
	// re-covers the same window and retries the failed documents.
	if tally.Failed > 0 {
		log.Printf("app: %d documents failed, sync cursor not advanced", tally.Failed)
		return tally, nil
	}

	if s.cursors != nil {
		state := cursor.State{
			LastRunAt: end,
			Tally:     fmt.Sprintf("created=%d updated=%d skipped=%d failed=%d", tally.Created, tally.Updated, tally.Skipped, tally.Failed),
		}
		if err := s.cursors.Set(ctx, s.databaseID, state); err != nil {
			return tally, fmt.Errorf("advance sync cursor: %w", err)
		}
	}
	return tally, nil
}

// SyncLocal reconciles one file or, for a directory, every Markdown
// file in it. An empty path means the configured docs directory.
func (s *Service) SyncLocal(ctx context.Context, path string, force bool) (model.Tally, error) {
	if path == "" {
		path = s.docsDir
	}
	info, err := os.Stat(path)
	if err != nil {
		return model.Tally{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("path %s not readable", path), nil)
	}
	if info.IsDir() {
		return s.engine.SyncLocalDir(ctx, path, force)
	}

	outcome, decision, err := s.engine.SyncLocalFile(ctx, path, force)
	var tally model.Tally
	tally.Record(outcome, decision)
	return tally, err
}

func (s *Service) Export(ctx context.Context, dir string) (*export.Result, error) {
	if dir == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dir is required", nil)
	}
	return s.exporter.ExportDir(ctx, dir)
}

func (s *Service) ListRecords(ctx context.Context, includeUnpublished bool) ([]store.Record, error) {
	if includeUnpublished {
		return s.records.ListAll(ctx)
	}
	return s.records.ListPublished(ctx)
}

func (s *Service) GetRecord(ctx context.Context, naturalKey string) (store.Record, error) {
	record, err := s.records.FindByNaturalKey(ctx, naturalKey)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}
	return record, err
}

func (s *Service) Search(q string, limit int) ([]search.Hit, error) {
	if s.searcher == nil || !s.searcher.Healthy() {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search backend not available", nil)
	}
	return s.searcher.Search(q, limit)
}
