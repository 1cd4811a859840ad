package notion

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"pagesync/internal/model"
)

func titleProp(text string) *notionapi.TitleProperty {
	return &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: text}}}
}

func checkboxProp(v bool) *notionapi.CheckboxProperty {
	return &notionapi.CheckboxProperty{Checkbox: v}
}

func multiSelectProp(names ...string) *notionapi.MultiSelectProperty {
	options := make([]notionapi.Option, 0, len(names))
	for _, name := range names {
		options = append(options, notionapi.Option{Name: name})
	}
	return &notionapi.MultiSelectProperty{MultiSelect: options}
}

func testPage(properties notionapi.Properties) *notionapi.Page {
	return &notionapi.Page{
		ID:             "aaaa-bbbb-cccc",
		CreatedTime:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		LastEditedTime: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Properties:     properties,
	}
}

func TestNormalize(t *testing.T) {
	page := testPage(notionapi.Properties{
		"Title":     titleProp("Release Notes"),
		"Published": checkboxProp(true),
		"Tags":      multiSelectProp("go", "infra"),
		"分类":        multiSelectProp("工程"),
		"Excerpt":   &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "short"}}},
		"Custom":    &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "kept"}}},
	})

	body := "Intro\n\n![shot](https://files.example.com/shot.png)\n"
	doc, err := Normalize(page, body)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if doc.NaturalKey != "aaaabbbbcccc" {
		t.Errorf("natural key = %q, want dashes stripped", doc.NaturalKey)
	}
	if doc.Title != "Release Notes" {
		t.Errorf("title = %q", doc.Title)
	}
	if !doc.Flags.Published || doc.Flags.Draft || doc.Flags.Archived {
		t.Errorf("flags = %+v", doc.Flags)
	}
	if len(doc.Taxonomy.Tags) != 2 || doc.Taxonomy.Tags[0] != "go" {
		t.Errorf("tags = %v", doc.Taxonomy.Tags)
	}
	if len(doc.Taxonomy.Categories) != 1 || doc.Taxonomy.Categories[0] != "工程" {
		t.Errorf("categories = %v", doc.Taxonomy.Categories)
	}
	if doc.Excerpt != "short" {
		t.Errorf("excerpt = %q", doc.Excerpt)
	}
	if doc.Origin != model.OriginRemote {
		t.Errorf("origin = %q", doc.Origin)
	}
	if len(doc.Embedded) != 1 || doc.Embedded[0].Locator != "https://files.example.com/shot.png" {
		t.Errorf("embedded refs = %v", doc.Embedded)
	}
	if doc.Embedded[0].Role != model.RoleEmbedded {
		t.Errorf("embedded role = %q", doc.Embedded[0].Role)
	}
	if doc.Extra["Custom"] != "kept" {
		t.Errorf("extra = %v, want unmapped property carried", doc.Extra)
	}
	if _, ok := doc.Extra["Title"]; ok {
		t.Error("consumed property leaked into extra")
	}
}

func TestNormalizeTitleFallback(t *testing.T) {
	page := testPage(notionapi.Properties{
		"Title": titleProp("  "),
	})

	doc, err := Normalize(page, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if doc.Title != untitledPlaceholder {
		t.Errorf("title = %q, want placeholder", doc.Title)
	}
}

func TestNormalizeCoverPrecedence(t *testing.T) {
	page := testPage(notionapi.Properties{
		"Title": titleProp("x"),
		"Cover": &notionapi.FilesProperty{Files: []notionapi.File{
			{External: &notionapi.FileObject{URL: "https://files.example.com/prop.png"}},
		}},
	})
	page.Cover = &notionapi.Image{External: &notionapi.FileObject{URL: "https://files.example.com/page.png"}}

	doc, err := Normalize(page, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if doc.Cover == nil || doc.Cover.Locator != "https://files.example.com/prop.png" {
		t.Errorf("cover = %+v, want property to win over page cover", doc.Cover)
	}
	if doc.Cover.Role != model.RoleCover {
		t.Errorf("cover role = %q", doc.Cover.Role)
	}
}

func TestNormalizePageCoverFallback(t *testing.T) {
	page := testPage(notionapi.Properties{"Title": titleProp("x")})
	page.Cover = &notionapi.Image{External: &notionapi.FileObject{URL: "https://files.example.com/page.png"}}

	doc, err := Normalize(page, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if doc.Cover == nil || doc.Cover.Locator != "https://files.example.com/page.png" {
		t.Errorf("cover = %+v, want page cover fallback", doc.Cover)
	}
}

func TestNormalizeArchivedPage(t *testing.T) {
	page := testPage(notionapi.Properties{"Title": titleProp("x")})
	page.Archived = true

	doc, err := Normalize(page, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !doc.Flags.Archived {
		t.Error("page-level archived flag not carried")
	}
}

func TestNormalizeGallery(t *testing.T) {
	page := testPage(notionapi.Properties{
		"Title": titleProp("x"),
		"Gallery": &notionapi.FilesProperty{Files: []notionapi.File{
			{External: &notionapi.FileObject{URL: "https://files.example.com/1.png"}},
			{External: &notionapi.FileObject{URL: "https://files.example.com/2.png"}},
		}},
	})

	doc, err := Normalize(page, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(doc.Gallery) != 2 {
		t.Fatalf("gallery = %v", doc.Gallery)
	}
	for _, ref := range doc.Gallery {
		if ref.Role != model.RoleGallery {
			t.Errorf("gallery role = %q", ref.Role)
		}
	}
}
