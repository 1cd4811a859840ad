package store

import "time"

// Record is one persisted synchronized document. ID is the
// store-assigned surrogate identity; NaturalKey is the business key the
// reconciliation engine looks records up by.
type Record struct {
	ID               int64
	NaturalKey       string
	Origin           string
	Title            string
	BodyMarkdown     string
	Excerpt          string
	CoverURL         string
	GalleryURLs      []string
	Categories       []string
	Tags             []string
	Published        bool
	Draft            bool
	Archived         bool
	Extra            map[string]any
	SourceCreatedAt  time.Time
	SourceModifiedAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
