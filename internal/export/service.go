// Package export writes the published records back out as Markdown
// files with YAML front matter, one file per record.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pagesync/internal/store"
)

// DataStore is the slice of the backing store the exporter needs.
type DataStore interface {
	ListPublished(ctx context.Context) ([]store.Record, error)
}

// Service exports published records to a directory.
type Service struct {
	store DataStore
}

func NewService(dataStore DataStore) *Service {
	return &Service{store: dataStore}
}

// frontMatter is the YAML header of one exported file. Field order
// follows the struct.
type frontMatter struct {
	Slug       string    `yaml:"slug"`
	Title      string    `yaml:"title"`
	Origin     string    `yaml:"origin"`
	Excerpt    string    `yaml:"excerpt,omitempty"`
	Cover      string    `yaml:"cover,omitempty"`
	Gallery    []string  `yaml:"gallery,omitempty"`
	Categories []string  `yaml:"categories,omitempty"`
	Tags       []string  `yaml:"tags,omitempty"`
	Date       time.Time `yaml:"date"`
	Modified   time.Time `yaml:"modified"`
}

// Result summarizes one export run.
type Result struct {
	Files   []string `json:"files"`
	Written int      `json:"written"`
}

// ExportDir writes every published record into dir, creating it if
// needed. File names derive from titles; colliding names are
// disambiguated with the natural key.
func (s *Service) ExportDir(ctx context.Context, dir string) (*Result, error) {
	records, err := s.store.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published records: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	result := &Result{}
	taken := make(map[string]struct{})
	for _, record := range records {
		name := fileName(record.Title)
		if _, dup := taken[name]; dup {
			name = fileName(record.Title + "-" + record.NaturalKey)
		}
		taken[name] = struct{}{}

		payload, err := renderFile(record)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", record.NaturalKey, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		result.Files = append(result.Files, name)
		result.Written++
	}
	return result, nil
}

func renderFile(record store.Record) ([]byte, error) {
	header := frontMatter{
		Slug:       record.NaturalKey,
		Title:      record.Title,
		Origin:     record.Origin,
		Excerpt:    record.Excerpt,
		Cover:      record.CoverURL,
		Gallery:    record.GalleryURLs,
		Categories: record.Categories,
		Tags:       record.Tags,
		Date:       record.SourceCreatedAt,
		Modified:   record.SourceModifiedAt,
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("close front matter encoder: %w", err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimRight(record.BodyMarkdown, "\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// fileName sanitizes a title into a stable Markdown file name.
func fileName(title string) string {
	name := strings.ToLower(strings.TrimSpace(title))
	name = unsafeNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "untitled"
	}
	return name + ".md"
}
