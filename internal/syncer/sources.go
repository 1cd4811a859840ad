package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"pagesync/internal/localdoc"
	"pagesync/internal/model"
	"pagesync/internal/notion"
)

var ErrNoRemoteSource = errors.New("remote source not configured")

// SyncPage pulls one workspace page, normalizes it, and reconciles it.
func (e *Engine) SyncPage(ctx context.Context, pageID string, force bool) (model.Outcome, model.Decision, error) {
	doc, err := e.loadPage(ctx, pageID)
	if err != nil {
		return failure(notion.NaturalKey(pageID), err), model.DecisionCreate, nil
	}
	return e.SyncDocument(ctx, doc, force)
}

// SyncRange reconciles every database page edited in [start, end),
// strictly in the order the source returns them.
func (e *Engine) SyncRange(ctx context.Context, databaseID string, start, end time.Time, force bool) (model.Tally, error) {
	if e.notion == nil {
		return model.Tally{}, ErrNoRemoteSource
	}

	pages, err := e.notion.QueryPagesEditedBetween(ctx, databaseID, start, end)
	if err != nil {
		return model.Tally{}, fmt.Errorf("query edited pages: %w", err)
	}

	var tally model.Tally
	for _, page := range pages {
		doc, err := e.loadPageDoc(ctx, page)
		if err != nil {
			outcome := failure(notion.NaturalKey(string(page.ID)), err)
			tally.Record(outcome, model.DecisionCreate)
			continue
		}
		outcome, decision, err := e.SyncDocument(ctx, doc, force)
		tally.Record(outcome, decision)
		if err != nil {
			return tally, err
		}
	}
	return tally, nil
}

// SyncLocalFile reconciles one Markdown file.
func (e *Engine) SyncLocalFile(ctx context.Context, path string, force bool) (model.Outcome, model.Decision, error) {
	doc, err := localdoc.Load(path)
	if err != nil {
		return failure(path, err), model.DecisionCreate, nil
	}
	return e.SyncDocument(ctx, doc, force)
}

// SyncLocalDir reconciles every Markdown file directly under dir. Files
// that fail to load count as document failures and do not stop the
// batch.
func (e *Engine) SyncLocalDir(ctx context.Context, dir string, force bool) (model.Tally, error) {
	docs, loadFailures := localdoc.LoadDir(dir)

	var tally model.Tally
	for _, err := range loadFailures {
		tally.Failed++
		tally.Failures = append(tally.Failures, err.Error())
	}
	batch, err := e.SyncBatch(ctx, docs, force)
	tally.Created += batch.Created
	tally.Updated += batch.Updated
	tally.Skipped += batch.Skipped
	tally.Failed += batch.Failed
	tally.Failures = append(tally.Failures, batch.Failures...)
	return tally, err
}

func (e *Engine) loadPage(ctx context.Context, pageID string) (model.Document, error) {
	if e.notion == nil {
		return model.Document{}, ErrNoRemoteSource
	}
	page, err := e.notion.GetPage(ctx, pageID)
	if err != nil {
		return model.Document{}, fmt.Errorf("get page: %w", err)
	}
	return e.loadPageDoc(ctx, page)
}

func (e *Engine) loadPageDoc(ctx context.Context, page *notionapi.Page) (model.Document, error) {
	body, err := e.renderer.Render(ctx, string(page.ID))
	if err != nil {
		return model.Document{}, fmt.Errorf("render page %s: %w", page.ID, err)
	}
	doc, err := notion.Normalize(page, body)
	if err != nil {
		return model.Document{}, fmt.Errorf("normalize page %s: %w", page.ID, err)
	}
	return doc, nil
}
