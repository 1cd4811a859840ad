package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
)

// Renderer converts a page's block tree into Markdown. Nested blocks
// are fetched on demand through the API.
type Renderer struct {
	api API
}

func NewRenderer(api API) *Renderer {
	return &Renderer{api: api}
}

// Render fetches and renders the full block tree of pageID.
func (r *Renderer) Render(ctx context.Context, pageID string) (string, error) {
	blocks, err := r.api.GetBlocks(ctx, pageID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := r.renderBlocks(ctx, &sb, blocks, 0); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

func (r *Renderer) renderBlocks(ctx context.Context, sb *strings.Builder, blocks []notionapi.Block, depth int) error {
	numbered := 0
	for _, block := range blocks {
		if block.GetType() == notionapi.BlockTypeNumberedListItem {
			numbered++
		} else {
			numbered = 0
		}
		if err := r.renderBlock(ctx, sb, block, depth, numbered); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderBlock(ctx context.Context, sb *strings.Builder, block notionapi.Block, depth, ordinal int) error {
	indent := strings.Repeat("  ", depth)

	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		writeLine(sb, indent, renderRichText(b.Paragraph.RichText))
		sb.WriteString("\n")
	case *notionapi.Heading1Block:
		writeLine(sb, indent, "# "+renderRichText(b.Heading1.RichText))
		sb.WriteString("\n")
	case *notionapi.Heading2Block:
		writeLine(sb, indent, "## "+renderRichText(b.Heading2.RichText))
		sb.WriteString("\n")
	case *notionapi.Heading3Block:
		writeLine(sb, indent, "### "+renderRichText(b.Heading3.RichText))
		sb.WriteString("\n")
	case *notionapi.BulletedListItemBlock:
		writeLine(sb, indent, "- "+renderRichText(b.BulletedListItem.RichText))
	case *notionapi.NumberedListItemBlock:
		writeLine(sb, indent, fmt.Sprintf("%d. %s", ordinal, renderRichText(b.NumberedListItem.RichText)))
	case *notionapi.ToDoBlock:
		box := "[ ]"
		if b.ToDo.Checked {
			box = "[x]"
		}
		writeLine(sb, indent, "- "+box+" "+renderRichText(b.ToDo.RichText))
	case *notionapi.ToggleBlock:
		writeLine(sb, indent, renderRichText(b.Toggle.RichText))
		sb.WriteString("\n")
	case *notionapi.QuoteBlock:
		writeLine(sb, indent, "> "+renderRichText(b.Quote.RichText))
		sb.WriteString("\n")
	case *notionapi.CalloutBlock:
		writeLine(sb, indent, "> "+renderRichText(b.Callout.RichText))
		sb.WriteString("\n")
	case *notionapi.CodeBlock:
		writeLine(sb, indent, "```"+b.Code.Language)
		writeLine(sb, indent, richTextPlain(b.Code.RichText))
		writeLine(sb, indent, "```")
		sb.WriteString("\n")
	case *notionapi.DividerBlock:
		writeLine(sb, indent, "---")
		sb.WriteString("\n")
	case *notionapi.BookmarkBlock:
		caption := renderRichText(b.Bookmark.Caption)
		if caption == "" {
			caption = b.Bookmark.URL
		}
		writeLine(sb, indent, "["+caption+"]("+b.Bookmark.URL+")")
		sb.WriteString("\n")
	case *notionapi.ImageBlock:
		url := fileURL(b.Image.File, b.Image.External)
		if url != "" {
			alt := richTextPlain(b.Image.Caption)
			writeLine(sb, indent, "!["+alt+"]("+url+")")
			sb.WriteString("\n")
		}
	case *notionapi.ChildPageBlock:
		writeLine(sb, indent, b.ChildPage.Title)
		sb.WriteString("\n")
	default:
		// Unsupported block types are dropped rather than rendered as
		// opaque placeholders.
	}

	if block.GetHasChildren() && hasRenderableChildren(block.GetType()) {
		children, err := r.api.GetBlocks(ctx, string(block.GetID()))
		if err != nil {
			return err
		}
		if err := r.renderBlocks(ctx, sb, children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func hasRenderableChildren(blockType notionapi.BlockType) bool {
	switch blockType {
	case notionapi.BlockTypeBulletedListItem,
		notionapi.BlockTypeNumberedListItem,
		notionapi.BlockTypeToDo,
		notionapi.BlockTypeToggle,
		notionapi.BlockTypeParagraph,
		notionapi.BlockTypeQuote,
		notionapi.BlockTypeCallout:
		return true
	}
	return false
}

func writeLine(sb *strings.Builder, indent, text string) {
	sb.WriteString(indent)
	sb.WriteString(text)
	sb.WriteString("\n")
}

// renderRichText applies inline annotations and links.
func renderRichText(richText []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range richText {
		text := rt.PlainText
		if a := rt.Annotations; a != nil {
			if a.Code {
				text = "`" + text + "`"
			}
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
		}
		if rt.Href != "" {
			text = "[" + text + "](" + rt.Href + ")"
		}
		sb.WriteString(text)
	}
	return sb.String()
}
