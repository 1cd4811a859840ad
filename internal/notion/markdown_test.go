package notion

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
)

type fakeAPI struct {
	blocks map[string][]notionapi.Block
}

func (f *fakeAPI) GetPage(context.Context, string) (*notionapi.Page, error) { return nil, nil }

func (f *fakeAPI) GetBlocks(_ context.Context, blockID string) ([]notionapi.Block, error) {
	return f.blocks[blockID], nil
}

func (f *fakeAPI) QueryPagesEditedBetween(context.Context, string, time.Time, time.Time) ([]*notionapi.Page, error) {
	return nil, nil
}

func basic(id string, blockType notionapi.BlockType, hasChildren bool) notionapi.BasicBlock {
	return notionapi.BasicBlock{
		Object:      notionapi.ObjectTypeBlock,
		ID:          notionapi.BlockID(id),
		Type:        blockType,
		HasChildren: hasChildren,
	}
}

func plain(text string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: text}}
}

func TestRenderBlocks(t *testing.T) {
	api := &fakeAPI{blocks: map[string][]notionapi.Block{
		"page": {
			&notionapi.Heading1Block{
				BasicBlock: basic("h1", notionapi.BlockTypeHeading1, false),
				Heading1:   notionapi.Heading{RichText: plain("Hello")},
			},
			&notionapi.ParagraphBlock{
				BasicBlock: basic("p1", notionapi.BlockTypeParagraph, false),
				Paragraph:  notionapi.Paragraph{RichText: plain("Body text.")},
			},
			&notionapi.BulletedListItemBlock{
				BasicBlock:       basic("li1", notionapi.BlockTypeBulletedListItem, true),
				BulletedListItem: notionapi.ListItem{RichText: plain("top")},
			},
			&notionapi.CodeBlock{
				BasicBlock: basic("c1", notionapi.BlockTypeCode, false),
				Code:       notionapi.Code{RichText: plain("x := 1"), Language: "go"},
			},
			&notionapi.ImageBlock{
				BasicBlock: basic("img1", notionapi.BlockTypeImage, false),
				Image: notionapi.Image{
					Type:     notionapi.FileTypeExternal,
					External: &notionapi.FileObject{URL: "https://src/a.png"},
				},
			},
		},
		"li1": {
			&notionapi.BulletedListItemBlock{
				BasicBlock:       basic("li2", notionapi.BlockTypeBulletedListItem, false),
				BulletedListItem: notionapi.ListItem{RichText: plain("nested")},
			},
		},
	}}

	got, err := NewRenderer(api).Render(context.Background(), "page")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, want := range []string{
		"# Hello",
		"Body text.",
		"- top",
		"  - nested",
		"```go",
		"x := 1",
		"![](https://src/a.png)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered output missing %q:\n%s", want, got)
		}
	}
}

func TestRenderNumberedList(t *testing.T) {
	api := &fakeAPI{blocks: map[string][]notionapi.Block{
		"page": {
			&notionapi.NumberedListItemBlock{
				BasicBlock:       basic("n1", notionapi.BlockTypeNumberedListItem, false),
				NumberedListItem: notionapi.ListItem{RichText: plain("first")},
			},
			&notionapi.NumberedListItemBlock{
				BasicBlock:       basic("n2", notionapi.BlockTypeNumberedListItem, false),
				NumberedListItem: notionapi.ListItem{RichText: plain("second")},
			},
		},
	}}

	got, err := NewRenderer(api).Render(context.Background(), "page")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(got, "1. first") || !strings.Contains(got, "2. second") {
		t.Errorf("numbered list not sequenced:\n%s", got)
	}
}

func TestRenderRichTextAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		input    notionapi.RichText
		expected string
	}{
		{
			name:     "bold",
			input:    notionapi.RichText{PlainText: "b", Annotations: &notionapi.Annotations{Bold: true}},
			expected: "**b**",
		},
		{
			name:     "italic",
			input:    notionapi.RichText{PlainText: "i", Annotations: &notionapi.Annotations{Italic: true}},
			expected: "*i*",
		},
		{
			name:     "code",
			input:    notionapi.RichText{PlainText: "c", Annotations: &notionapi.Annotations{Code: true}},
			expected: "`c`",
		},
		{
			name:     "strikethrough",
			input:    notionapi.RichText{PlainText: "s", Annotations: &notionapi.Annotations{Strikethrough: true}},
			expected: "~~s~~",
		},
		{
			name:     "link",
			input:    notionapi.RichText{PlainText: "t", Href: "https://example.com"},
			expected: "[t](https://example.com)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderRichText([]notionapi.RichText{tt.input})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
