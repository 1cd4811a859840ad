// Package search maintains an optional Meilisearch index over the
// synchronized records. Indexing is best effort: the sync pipeline never
// fails because the search backend is down.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"pagesync/internal/store"
)

const idxRecords = "pagesync_records"

// recordDoc is the indexed shape of one record. The body is indexed in
// full; callers render excerpts from highlights, not from the body.
type recordDoc struct {
	ID         int64    `json:"id"`
	NaturalKey string   `json:"naturalKey"`
	Origin     string   `json:"origin"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Excerpt    string   `json:"excerpt"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	ModifiedAt int64    `json:"modifiedAt"`
}

// Hit is one search result.
type Hit struct {
	NaturalKey string `json:"naturalKey"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
}

// Meili wraps the Meilisearch client with a background health monitor.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the records index. An
// unreachable backend is tolerated; the health loop reconfigures the
// index once it recovers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRecords,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxRecords, err)
	}

	index := m.client.Index(idxRecords)
	filterable := []interface{}{"origin", "categories", "tags"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "body", "excerpt", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexRecord upserts one record into the index.
func (m *Meili) IndexRecord(_ context.Context, record store.Record) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}

	doc := recordDoc{
		ID:         record.ID,
		NaturalKey: record.NaturalKey,
		Origin:     record.Origin,
		Title:      record.Title,
		Body:       record.BodyMarkdown,
		Excerpt:    record.Excerpt,
		Categories: record.Categories,
		Tags:       record.Tags,
		ModifiedAt: record.SourceModifiedAt.Unix(),
	}
	if _, err := m.client.Index(idxRecords).UpdateDocuments([]recordDoc{doc}, nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("index record %s: %w", record.NaturalKey, err)
	}
	return nil
}

// Search queries the records index.
func (m *Meili) Search(q string, limit int) ([]Hit, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxRecords).Search(q, &meili.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		hits = append(hits, Hit{
			NaturalKey: decodeString(hit, "naturalKey"),
			Title:      decodeString(hit, "title"),
			Excerpt:    decodeString(hit, "excerpt"),
		})
	}
	return hits, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
