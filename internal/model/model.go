package model

import "time"

// Origin identifies where a document came from. It determines which
// natural key and which image-resolution strategy apply.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// ImageRole is the functional placement of an image. Each role maps to
// its own storage prefix, so identical bytes under two roles are stored
// twice.
type ImageRole string

const (
	RoleEmbedded ImageRole = "embedded"
	RoleCover    ImageRole = "cover"
	RoleGallery  ImageRole = "gallery"
)

// ImageRef is one embedded or metadata-referenced image. Locator is a
// remote URL for remote-origin documents and a filesystem path for local
// ones. Fingerprint and ResolvedURL stay empty until resolution runs;
// an empty ResolvedURL after resolution marks a per-image failure.
type ImageRef struct {
	Locator     string
	Role        ImageRole
	Fingerprint string
	ResolvedURL string
}

type Flags struct {
	Published bool
	Draft     bool
	Archived  bool
}

// Publishable reports whether the document passes the visibility gate:
// published, not a draft, not archived.
func (f Flags) Publishable() bool {
	return f.Published && !f.Draft && !f.Archived
}

type Taxonomy struct {
	Categories []string
	Tags       []string
}

// Document is the canonical in-flight representation of one synchronized
// item. It is rebuilt from the source of truth on every sync invocation
// and discarded after persistence.
type Document struct {
	NaturalKey     string
	Title          string
	BodyMarkdown   string
	CreatedAt      time.Time
	LastModifiedAt time.Time
	Flags          Flags
	Taxonomy       Taxonomy
	Excerpt        string
	Cover          *ImageRef
	Gallery        []ImageRef
	Embedded       []ImageRef
	Origin         Origin
	// SourcePath is the filesystem location for local-origin documents.
	// Empty for remote ones.
	SourcePath string
	Extra      map[string]any
}

// Decision is the reconciliation outcome for one document.
type Decision string

const (
	DecisionCreate          Decision = "CREATE"
	DecisionUpdate          Decision = "UPDATE"
	DecisionSkipUnpublished Decision = "SKIP_UNPUBLISHED"
	DecisionSkipUnchanged   Decision = "SKIP_UNCHANGED"
)

// Outcome is the per-document result surfaced to the CLI/HTTP layer.
type Outcome struct {
	Success         bool   `json:"success"`
	NaturalKey      string `json:"naturalKey"`
	Message         string `json:"message"`
	ImagesProcessed int    `json:"imagesProcessed"`
	Skipped         bool   `json:"skipped"`
}

// Tally summarizes a batch run. Failures holds one message per failed
// document in processing order.
type Tally struct {
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

func (t *Tally) Record(outcome Outcome, decision Decision) {
	switch {
	case !outcome.Success:
		t.Failed++
		t.Failures = append(t.Failures, outcome.NaturalKey+": "+outcome.Message)
	case decision == DecisionCreate:
		t.Created++
	case decision == DecisionUpdate:
		t.Updated++
	default:
		t.Skipped++
	}
}
