package notion

import (
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"pagesync/internal/images"
	"pagesync/internal/model"
	"pagesync/internal/props"
)

// untitledPlaceholder is the title fallback for remote documents with
// no resolvable title property.
const untitledPlaceholder = "Untitled"

// Normalize builds the raw (pre-image-resolution) document from a page's
// property bag and its rendered Markdown body.
func Normalize(page *notionapi.Page, bodyMarkdown string) (model.Document, error) {
	bag := BagFromProperties(page.Properties)

	doc := model.Document{
		NaturalKey:     NaturalKey(string(page.ID)),
		BodyMarkdown:   bodyMarkdown,
		CreatedAt:      page.CreatedTime,
		LastModifiedAt: page.LastEditedTime,
		Origin:         model.OriginRemote,
	}

	title, err := props.ResolveText(bag, props.FieldTitle)
	if err != nil {
		return model.Document{}, fmt.Errorf("resolve title: %w", err)
	}
	doc.Title = title
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = untitledPlaceholder
	}

	if doc.Flags.Published, err = props.ResolveBool(bag, props.FieldPublished); err != nil {
		return model.Document{}, err
	}
	if doc.Flags.Draft, err = props.ResolveBool(bag, props.FieldDraft); err != nil {
		return model.Document{}, err
	}
	doc.Flags.Archived = page.Archived
	if !doc.Flags.Archived {
		if doc.Flags.Archived, err = props.ResolveBool(bag, props.FieldArchived); err != nil {
			return model.Document{}, err
		}
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

	coverURLs, err := props.ResolveFiles(bag, props.FieldCover)
	if err != nil {
		return model.Document{}, err
	}
	if len(coverURLs) == 0 && page.Cover != nil {
		if url := fileURL(page.Cover.File, page.Cover.External); url != "" {
			coverURLs = []string{url}
		}
	}
	if len(coverURLs) > 0 {
		doc.Cover = &model.ImageRef{Locator: coverURLs[0], Role: model.RoleCover}
	}

	galleryURLs, err := props.ResolveFiles(bag, props.FieldGallery)
	if err != nil {
		return model.Document{}, err
	}
	for _, url := range galleryURLs {
		doc.Gallery = append(doc.Gallery, model.ImageRef{Locator: url, Role: model.RoleGallery})
	}

	for _, locator := range images.ExtractRemote(bodyMarkdown) {
		doc.Embedded = append(doc.Embedded, model.ImageRef{Locator: locator, Role: model.RoleEmbedded})
	}

	doc.Extra = extraProperties(bag)
	return doc, nil
}

// NaturalKey strips the separator characters from a page identifier.
func NaturalKey(pageID string) string {
	return strings.ReplaceAll(pageID, "-", "")
}

// extraProperties carries source metadata the model has no named field
// for, preserved for forward compatibility.
func extraProperties(bag props.Bag) map[string]any {
	consumed := make(map[string]struct{})
	for _, mapping := range []props.Mapping{
		props.FieldTitle, props.FieldPublished, props.FieldDraft,
		props.FieldArchived, props.FieldCategories, props.FieldTags,
		props.FieldExcerpt, props.FieldCover, props.FieldGallery,
		props.FieldDate,
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
		case props.KindFiles:
			extra[name] = value.Files
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
