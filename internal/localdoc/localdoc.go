// Package localdoc is the filesystem source: it parses Markdown files
// with YAML front matter and normalizes them into the shared document
// model, taking timestamps from the enclosing git repository when one
// exists.
package localdoc

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"pagesync/internal/images"
	"pagesync/internal/model"
	"pagesync/internal/props"
)

// Front matter carries image references as plain strings and string
// lists rather than file objects, so cover and gallery resolve against
// text kinds here.
var (
	coverField   = props.Mapping{Candidates: props.FieldCover.Candidates, Kind: props.KindText}
	galleryField = props.Mapping{Candidates: props.FieldGallery.Candidates, Kind: props.KindList}
)

// Load parses one Markdown file into a raw document. The slug front
// matter field is the natural key and is required; files without it are
// rejected.
func Load(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("read document %s: %w", path, err)
	}

	meta := make(map[string]any)
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse front matter %s: %w", path, err)
	}
	bag := bagFromMeta(meta)

	slug, err := props.ResolveText(bag, props.FieldSlug)
	if err != nil {
		return model.Document{}, fmt.Errorf("document %s: %w", path, err)
	}

	doc := model.Document{
		NaturalKey:   slug,
		BodyMarkdown: string(body),
		Origin:       model.OriginLocal,
		SourcePath:   path,
	}

	if doc.Title, err = props.ResolveText(bag, props.FieldTitle); err != nil {
		return model.Document{}, err
	}
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if doc.Flags.Published, err = props.ResolveBool(bag, props.FieldPublished); err != nil {
		return model.Document{}, err
	}
	if doc.Flags.Draft, err = props.ResolveBool(bag, props.FieldDraft); err != nil {
		return model.Document{}, err
	}
	if doc.Flags.Archived, err = props.ResolveBool(bag, props.FieldArchived); err != nil {
		return model.Document{}, err
	}
	if doc.Taxonomy.Categories, err = props.ResolveList(bag, props.FieldCategories); err != nil {
		return model.Document{}, err
	}
	if doc.Taxonomy.Tags, err = props.ResolveList(bag, props.FieldTags); err != nil {
		return model.Document{}, err
	}
	if doc.Excerpt, err = props.ResolveText(bag, props.FieldExcerpt); err != nil {
		return model.Document{}, err
	}

	baseDir := filepath.Dir(path)
	if locator, err := props.ResolveText(bag, coverField); err != nil {
		return model.Document{}, err
	} else if locator != "" {
		doc.Cover = &model.ImageRef{Locator: resolveLocator(locator, baseDir), Role: model.RoleCover}
	}
	galleryLocators, err := props.ResolveList(bag, galleryField)
	if err != nil {
		return model.Document{}, err
	}
	for _, locator := range galleryLocators {
		doc.Gallery = append(doc.Gallery, model.ImageRef{Locator: resolveLocator(locator, baseDir), Role: model.RoleGallery})
	}
	for _, locator := range images.ExtractLocal(string(body), baseDir) {
		doc.Embedded = append(doc.Embedded, model.ImageRef{Locator: locator, Role: model.RoleEmbedded})
	}

	doc.CreatedAt, doc.LastModifiedAt = fileTimes(path)
	if value, err := props.Resolve(bag, props.FieldDate); err != nil {
		return model.Document{}, err
	} else if value.Kind == props.KindDate && !value.Date.IsZero() {
		doc.CreatedAt = value.Date
	}

	doc.Extra = extraMeta(bag)
	return doc, nil
}

// LoadDir loads every .md file directly under dir, skipping files whose
// front matter fails to parse. Failures are reported alongside the
// loaded documents so a batch can continue past bad files.
func LoadDir(dir string) ([]model.Document, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read directory %s: %w", dir, err)}
	}

	var docs []model.Document
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		doc, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			failures = append(failures, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failures
}

func resolveLocator(locator, baseDir string) string {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator
	}
	if filepath.IsAbs(locator) {
		return filepath.Clean(locator)
	}
	return filepath.Clean(filepath.Join(baseDir, locator))
}

// fileTimes reads the file's commit history when it lives inside a git
// worktree: the earliest commit is the creation time, the latest the
// modification time. Files outside a repository, or not yet committed,
// fall back to the filesystem mtime for both.
func fileTimes(path string) (created, modified time.Time) {
	created, modified, err := gitTimes(path)
	if err == nil {
		return created, modified
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		now := time.Now()
		return now, now
	}
	log.Printf("localdoc: no git history for %s, using mtime: %v", path, err)
	return info.ModTime(), info.ModTime()
}

func gitTimes(path string) (created, modified time.Time, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return created, modified, err
	}
	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return created, modified, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return created, modified, err
	}
	rel, err := filepath.Rel(worktree.Filesystem.Root(), abs)
	if err != nil {
		return created, modified, err
	}
	rel = filepath.ToSlash(rel)

	iter, err := repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return created, modified, err
	}
	defer iter.Close()

	err = iter.ForEach(func(commit *object.Commit) error {
		when := commit.Author.When
		if modified.IsZero() || when.After(modified) {
			modified = when
		}
		if created.IsZero() || when.Before(created) {
			created = when
		}
		return nil
	})
	if err != nil {
		return created, modified, err
	}
	if created.IsZero() {
		return created, modified, fmt.Errorf("no commits touch %s", rel)
	}
	return created, modified, nil
}

// bagFromMeta converts decoded YAML values to the typed bag. Nested
// mappings have no bag kind and are skipped.
func bagFromMeta(meta map[string]any) props.Bag {
	bag := make(props.Bag, len(meta))
	for name, value := range meta {
		switch v := value.(type) {
		case string:
			bag[name] = props.Text(v)
		case bool:
			bag[name] = props.Bool(v)
		case int:
			bag[name] = props.Number(float64(v))
		case int64:
			bag[name] = props.Number(float64(v))
		case float64:
			bag[name] = props.Number(v)
		case time.Time:
			bag[name] = props.Date(v)
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			bag[name] = props.List(items...)
		case []string:
			bag[name] = props.List(v...)
		}
	}
	return bag
}

func extraMeta(bag props.Bag) map[string]any {
	consumed := make(map[string]struct{})
	for _, mapping := range []props.Mapping{
		props.FieldTitle, props.FieldPublished, props.FieldDraft,
		props.FieldArchived, props.FieldCategories, props.FieldTags,
		props.FieldExcerpt, props.FieldCover, props.FieldGallery,
		props.FieldSlug, props.FieldDate,
	} {
		for _, name := range mapping.Candidates {
			consumed[strings.ToLower(name)] = struct{}{}
		}
	}

	extra := make(map[string]any)
	for name, value := range bag {
		if _, ok := consumed[strings.ToLower(name)]; ok {
			continue
		}
		switch value.Kind {
		case props.KindText:
			extra[name] = value.Text
		case props.KindBool:
			extra[name] = value.Bool
		case props.KindNumber:
			extra[name] = value.Number
		case props.KindList:
			extra[name] = value.List
		case props.KindDate:
			extra[name] = value.Date
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
