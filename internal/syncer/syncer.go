// Package syncer is the reconciliation engine: it decides what to do
// with each incoming document, runs the image pipeline, and persists the
// result through the backing store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"pagesync/internal/images"
	"pagesync/internal/model"
	"pagesync/internal/notion"
	"pagesync/internal/store"
)

// DataStore is the slice of the backing store the engine needs.
type DataStore interface {
	FindByNaturalKey(ctx context.Context, naturalKey string) (store.Record, error)
	Insert(ctx context.Context, record store.Record) (store.Record, error)
	Update(ctx context.Context, id int64, record store.Record) (store.Record, error)
}

// Indexer receives persisted records for search indexing. Indexing is
// best effort; a nil Indexer disables it.
type Indexer interface {
	IndexRecord(ctx context.Context, record store.Record) error
}

type Engine struct {
	store      DataStore
	resolver   *images.Resolver
	httpClient *http.Client

	notion   notion.API
	renderer *notion.Renderer
	index    Indexer
}

func New(dataStore DataStore, resolver *images.Resolver) *Engine {
	return &Engine{
		store:      dataStore,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UseNotion wires the remote source. SyncPage and SyncRange fail until
// this is called.
func (e *Engine) UseNotion(api notion.API) {
	e.notion = api
	e.renderer = notion.NewRenderer(api)
}

// UseIndexer enables best-effort search indexing after each persist.
func (e *Engine) UseIndexer(index Indexer) {
	e.index = index
}

// Decide maps one incoming document and the current persisted state to
// a reconciliation decision. existing is nil when no record carries the
// incoming natural key. Pure; does no I/O.
func Decide(doc model.Document, existing *store.Record, force bool) model.Decision {
	if !doc.Flags.Publishable() {
		return model.DecisionSkipUnpublished
	}
	if existing == nil {
		return model.DecisionCreate
	}
	if !force && !doc.LastModifiedAt.After(existing.SourceModifiedAt) {
		return model.DecisionSkipUnchanged
	}
	return model.DecisionUpdate
}

// SyncDocument reconciles one document end to end. Store and per-image
// failures are reported through the outcome; the returned error is
// reserved for the fatal class (object-store authentication), which
// aborts the whole run.
func (e *Engine) SyncDocument(ctx context.Context, doc model.Document, force bool) (model.Outcome, model.Decision, error) {
	if !doc.Flags.Publishable() {
		return model.Outcome{
			Success:    true,
			NaturalKey: doc.NaturalKey,
			Message:    "not publishable",
			Skipped:    true,
		}, model.DecisionSkipUnpublished, nil
	}

	var existing *store.Record
	found, err := e.store.FindByNaturalKey(ctx, doc.NaturalKey)
	switch {
	case err == nil:
		existing = &found
	case errors.Is(err, store.ErrNotFound):
	default:
		return failure(doc.NaturalKey, fmt.Errorf("find record: %w", err)), model.DecisionCreate, nil
	}

	decision := Decide(doc, existing, force)
	if decision == model.DecisionSkipUnchanged {
		return model.Outcome{
			Success:    true,
			NaturalKey: doc.NaturalKey,
			Message:    "source not newer than stored record",
			Skipped:    true,
		}, decision, nil
	}

	doc, processed, err := e.resolveImages(ctx, doc)
	if err != nil {
		return failure(doc.NaturalKey, err), decision, err
	}

	record := toRecord(doc)
	var persisted store.Record
	switch decision {
	case model.DecisionCreate:
		persisted, err = e.store.Insert(ctx, record)
	default:
		persisted, err = e.store.Update(ctx, existing.ID, record)
	}
	if err != nil {
		return failure(doc.NaturalKey, fmt.Errorf("persist record: %w", err)), decision, nil
	}

	if e.index != nil {
		if err := e.index.IndexRecord(ctx, persisted); err != nil {
			log.Printf("syncer: index %s: %v", persisted.NaturalKey, err)
		}
	}

	return model.Outcome{
		Success:         true,
		NaturalKey:      doc.NaturalKey,
		Message:         string(decision),
		ImagesProcessed: processed,
	}, decision, nil
}

// SyncBatch reconciles documents strictly in order. A document failure
// is tallied and the batch continues; only the fatal class stops it.
func (e *Engine) SyncBatch(ctx context.Context, docs []model.Document, force bool) (model.Tally, error) {
	var tally model.Tally
	for _, doc := range docs {
		outcome, decision, err := e.SyncDocument(ctx, doc, force)
		tally.Record(outcome, decision)
		if err != nil {
			return tally, err
		}
	}
	return tally, nil
}

// resolveImages runs the dedup pipeline over every image the document
// references, concurrently within the document, then rewrites the body
// once all resolutions have joined.
func (e *Engine) resolveImages(ctx context.Context, doc model.Document) (model.Document, int, error) {
	var refs []model.ImageRef
	if doc.Cover != nil {
		refs = append(refs, *doc.Cover)
	}
	refs = append(refs, doc.Gallery...)
	refs = append(refs, doc.Embedded...)
	if len(refs) == 0 {
		return doc, 0, nil
	}

	resolved, err := e.resolver.ResolveAll(ctx, refs, e.fetcherFor(doc.Origin))
	if err != nil {
		return doc, len(refs), err
	}

	next := 0
	if doc.Cover != nil {
		cover := resolved[next]
		doc.Cover = &cover
		next++
	}
	doc.Gallery = resolved[next : next+len(doc.Gallery)]
	next += len(doc.Gallery)
	doc.Embedded = resolved[next:]

	switch doc.Origin {
	case model.OriginLocal:
		doc.BodyMarkdown = images.RewriteLocal(doc.BodyMarkdown, filepath.Dir(doc.SourcePath), doc.Embedded)
	default:
		doc.BodyMarkdown = images.RewriteRemote(doc.BodyMarkdown, doc.Embedded)
	}
	return doc, len(refs), nil
}

func (e *Engine) fetcherFor(origin model.Origin) func(model.ImageRef) images.FetchFunc {
	if origin == model.OriginLocal {
		return func(ref model.ImageRef) images.FetchFunc {
			return func(context.Context) ([]byte, error) {
				data, err := os.ReadFile(ref.Locator)
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
					return nil, backoff.Permanent(err)
				}
				return data, err
			}
		}
	}
	return func(ref model.ImageRef) images.FetchFunc {
		return func(ctx context.Context) ([]byte, error) {
			return e.download(ctx, ref.Locator)
		}
	}
}

func (e *Engine) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download %s: status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func toRecord(doc model.Document) store.Record {
	record := store.Record{
		NaturalKey:       doc.NaturalKey,
		Origin:           string(doc.Origin),
		Title:            doc.Title,
		BodyMarkdown:     doc.BodyMarkdown,
		Excerpt:          doc.Excerpt,
		Categories:       doc.Taxonomy.Categories,
		Tags:             doc.Taxonomy.Tags,
		Published:        doc.Flags.Published,
		Draft:            doc.Flags.Draft,
		Archived:         doc.Flags.Archived,
		Extra:            doc.Extra,
		SourceCreatedAt:  doc.CreatedAt,
		SourceModifiedAt: doc.LastModifiedAt,
	}
	if doc.Cover != nil {
		record.CoverURL = imageURL(*doc.Cover)
	}
	for _, ref := range doc.Gallery {
		record.GalleryURLs = append(record.GalleryURLs, imageURL(ref))
	}
	return record
}

// imageURL prefers the rehosted object; a reference whose resolution
// failed keeps pointing at the source system rather than disappearing.
func imageURL(ref model.ImageRef) string {
	if ref.ResolvedURL != "" {
		return ref.ResolvedURL
	}
	return ref.Locator
}

func failure(naturalKey string, err error) model.Outcome {
	log.Printf("syncer: %s: %v", naturalKey, err)
	return model.Outcome{NaturalKey: naturalKey, Message: err.Error()}
}
