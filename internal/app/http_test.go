package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pagesync/internal/cursor"
	"pagesync/internal/export"
	"pagesync/internal/model"
	"pagesync/internal/search"
	"pagesync/internal/store"
)

type fakeEngine struct {
	syncPageFn  func(ctx context.Context, pageID string, force bool) (model.Outcome, model.Decision, error)
	syncRangeFn func(ctx context.Context, databaseID string, start, end time.Time, force bool) (model.Tally, error)
	localFileFn func(ctx context.Context, path string, force bool) (model.Outcome, model.Decision, error)
	localDirFn  func(ctx context.Context, dir string, force bool) (model.Tally, error)
}

func (f *fakeEngine) SyncPage(ctx context.Context, pageID string, force bool) (model.Outcome, model.Decision, error) {
	return f.syncPageFn(ctx, pageID, force)
}

func (f *fakeEngine) SyncRange(ctx context.Context, databaseID string, start, end time.Time, force bool) (model.Tally, error) {
	return f.syncRangeFn(ctx, databaseID, start, end, force)
}

func (f *fakeEngine) SyncLocalFile(ctx context.Context, path string, force bool) (model.Outcome, model.Decision, error) {
	return f.localFileFn(ctx, path, force)
}

func (f *fakeEngine) SyncLocalDir(ctx context.Context, dir string, force bool) (model.Tally, error) {
	return f.localDirFn(ctx, dir, force)
}

type fakeRecordStore struct {
	findFn          func(ctx context.Context, naturalKey string) (store.Record, error)
	listPublishedFn func(ctx context.Context) ([]store.Record, error)
	listAllFn       func(ctx context.Context) ([]store.Record, error)
	pingFn          func(ctx context.Context) error
}

func (f *fakeRecordStore) FindByNaturalKey(ctx context.Context, naturalKey string) (store.Record, error) {
	if f.findFn == nil {
		return store.Record{}, store.ErrNotFound
	}
	return f.findFn(ctx, naturalKey)
}

func (f *fakeRecordStore) ListPublished(ctx context.Context) ([]store.Record, error) {
	if f.listPublishedFn == nil {
		return nil, nil
	}
	return f.listPublishedFn(ctx)
}

func (f *fakeRecordStore) ListAll(ctx context.Context) ([]store.Record, error) {
	if f.listAllFn == nil {
		return nil, nil
	}
	return f.listAllFn(ctx)
}

func (f *fakeRecordStore) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

type fakeBlob struct {
	pingFn func(ctx context.Context) error
}

func (f *fakeBlob) Exists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeBlob) Put(_ context.Context, key string, _ []byte, _ string, _ map[string]string) (string, error) {
	return f.PublicURL(key), nil
}

func (f *fakeBlob) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (f *fakeBlob) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

type fakeExporter struct {
	exportFn func(ctx context.Context, dir string) (*export.Result, error)
}

func (f *fakeExporter) ExportDir(ctx context.Context, dir string) (*export.Result, error) {
	return f.exportFn(ctx, dir)
}

type fakeCursors struct {
	states map[string]cursor.State
}

func (f *fakeCursors) Get(_ context.Context, databaseID string) (cursor.State, error) {
	state, ok := f.states[databaseID]
	if !ok {
		return cursor.State{}, cursor.ErrNoCursor
	}
	return state, nil
}

func (f *fakeCursors) Set(_ context.Context, databaseID string, state cursor.State) error {
	f.states[databaseID] = state
	return nil
}

const testToken = "test-sync-token"

func testServer(engine SyncEngine, records RecordStore) *HTTPServer {
	if records == nil {
		records = &fakeRecordStore{}
	}
	service := NewService(engine, records, &fakeBlob{}, &fakeExporter{
		exportFn: func(context.Context, string) (*export.Result, error) {
			return &export.Result{Written: 0}, nil
		},
	}, testToken, "db-1", "./docs", 24*time.Hour)
	return NewHTTPServer(service, "*")
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(syncTokenHeader, token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealth(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestReadyDegraded(t *testing.T) {
	records := &fakeRecordStore{
		pingFn: func(context.Context) error { return fmt.Errorf("connection refused") },
	}
	handler := testServer(&fakeEngine{}, records).Handler()

	resp := doRequest(t, handler, http.MethodGet, "/api/ready", "", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.Code)
	}
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.OK {
		t.Error("ready reported ok with database down")
	}
}

func TestSyncPageRequiresToken(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()

	resp := doRequest(t, handler, http.MethodPost, "/api/sync/page", "", map[string]any{"pageId": "p1"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/sync/page", "wrong-token", map[string]any{"pageId": "p1"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong token", resp.Code)
	}
}

func TestSyncPage(t *testing.T) {
	var gotForce bool
	engine := &fakeEngine{
		syncPageFn: func(_ context.Context, pageID string, force bool) (model.Outcome, model.Decision, error) {
			gotForce = force
			return model.Outcome{Success: true, NaturalKey: pageID, Message: "CREATE"}, model.DecisionCreate, nil
		},
	}
	handler := testServer(engine, nil).Handler()

	resp := doRequest(t, handler, http.MethodPost, "/api/sync/page", testToken, map[string]any{"pageId": "p1", "force": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if !gotForce {
		t.Error("force flag not passed through")
	}
	var outcome model.Outcome
	if err := json.Unmarshal(resp.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !outcome.Success || outcome.NaturalKey != "p1" {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestSyncPageMissingID(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodPost, "/api/sync/page", testToken, map[string]any{})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
}

func TestSyncRangeExplicitWindow(t *testing.T) {
	var gotStart, gotEnd time.Time
	engine := &fakeEngine{
		syncRangeFn: func(_ context.Context, _ string, start, end time.Time, _ bool) (model.Tally, error) {
			gotStart, gotEnd = start, end
			return model.Tally{Created: 2}, nil
		},
	}
	handler := testServer(engine, nil).Handler()

	resp := doRequest(t, handler, http.MethodPost, "/api/sync/range", testToken, map[string]any{
		"start": "2025-03-01T00:00:00Z",
		"end":   "2025-03-02T00:00:00Z",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if gotStart.IsZero() || !gotEnd.After(gotStart) {
		t.Errorf("window = [%v, %v)", gotStart, gotEnd)
	}
}

func TestSyncRangeInvalidWindow(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodPost, "/api/sync/range", testToken, map[string]any{
		"start": "2025-03-02T00:00:00Z",
		"end":   "2025-03-01T00:00:00Z",
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodGet, "/api/records/missing", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestGetRecord(t *testing.T) {
	records := &fakeRecordStore{
		findFn: func(_ context.Context, naturalKey string) (store.Record, error) {
			return store.Record{ID: 1, NaturalKey: naturalKey, Title: "t", Published: true}, nil
		},
	}
	handler := testServer(&fakeEngine{}, records).Handler()

	resp := doRequest(t, handler, http.MethodGet, "/api/records/k1", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["naturalKey"] != "k1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestSearchUnavailable(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodGet, "/api/search?q=go", "", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.Code)
	}
}

type staticSearcher struct{ hits []search.Hit }

func (s *staticSearcher) Search(string, int) ([]search.Hit, error) { return s.hits, nil }
func (s *staticSearcher) Healthy() bool                            { return true }

func TestSearch(t *testing.T) {
	server := testServer(&fakeEngine{}, nil)
	server.service.UseSearcher(&staticSearcher{hits: []search.Hit{{NaturalKey: "k1", Title: "t"}}})
	handler := server.Handler()

	resp := doRequest(t, handler, http.MethodGet, "/api/search?q=go", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var payload struct {
		Hits []search.Hit `json:"hits"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Hits) != 1 || payload.Hits[0].NaturalKey != "k1" {
		t.Errorf("hits = %v", payload.Hits)
	}
}

func TestSyncIncrementalAdvancesCursor(t *testing.T) {
	var gotStart time.Time
	engine := &fakeEngine{
		syncRangeFn: func(_ context.Context, _ string, start, _ time.Time, _ bool) (model.Tally, error) {
			gotStart = start
			return model.Tally{Updated: 1}, nil
		},
	}
	server := testServer(engine, nil)
	cursors := &fakeCursors{states: make(map[string]cursor.State)}
	server.service.UseCursors(cursors)

	lastRun := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	cursors.states["db-1"] = cursor.State{LastRunAt: lastRun}

	resp := doRequest(t, server.Handler(), http.MethodPost, "/api/sync/range", testToken, map[string]any{})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if !gotStart.Equal(lastRun) {
		t.Errorf("start = %v, want stored cursor %v", gotStart, lastRun)
	}
	if cursors.states["db-1"].LastRunAt.Equal(lastRun) {
		t.Error("cursor not advanced after run")
	}
}

func TestSyncIncrementalHoldsCursorOnFailures(t *testing.T) {
	engine := &fakeEngine{
		syncRangeFn: func(context.Context, string, time.Time, time.Time, bool) (model.Tally, error) {
			return model.Tally{Updated: 1, Failed: 2}, nil
		},
	}
	server := testServer(engine, nil)
	cursors := &fakeCursors{states: make(map[string]cursor.State)}
	server.service.UseCursors(cursors)

	lastRun := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	cursors.states["db-1"] = cursor.State{LastRunAt: lastRun}

	resp := doRequest(t, server.Handler(), http.MethodPost, "/api/sync/range", testToken, map[string]any{})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if !cursors.states["db-1"].LastRunAt.Equal(lastRun) {
		t.Error("cursor advanced past failed documents")
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := testServer(&fakeEngine{}, nil).Handler()
	resp := doRequest(t, handler, http.MethodGet, "/api/nope", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}
