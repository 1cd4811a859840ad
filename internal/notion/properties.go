package notion

import (
	"time"

	"github.com/jomei/notionapi"

	"pagesync/internal/props"
)

// BagFromProperties converts a page's property map into the typed bag
// the field-mapping resolver works on. Property types the bag has no
// kind for are flattened to text where a plain rendering exists and
// skipped otherwise.
func BagFromProperties(properties notionapi.Properties) props.Bag {
	bag := make(props.Bag, len(properties))
	for name, property := range properties {
		if value, ok := convertProperty(property); ok {
			bag[name] = value
		}
	}
	return bag
}

func convertProperty(property notionapi.Property) (props.Value, bool) {
	switch p := property.(type) {
	case *notionapi.TitleProperty:
		return props.Text(richTextPlain(p.Title)), true
	case *notionapi.RichTextProperty:
		return props.Text(richTextPlain(p.RichText)), true
	case *notionapi.CheckboxProperty:
		return props.Bool(p.Checkbox), true
	case *notionapi.SelectProperty:
		return props.Text(p.Select.Name), true
	case *notionapi.StatusProperty:
		return props.Text(p.Status.Name), true
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, option := range p.MultiSelect {
			names = append(names, option.Name)
		}
		return props.List(names...), true
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return props.Value{}, false
		}
		return props.Date(time.Time(*p.Date.Start)), true
	case *notionapi.FilesProperty:
		urls := make([]string, 0, len(p.Files))
		for _, file := range p.Files {
			if url := fileURL(file.File, file.External); url != "" {
				urls = append(urls, url)
			}
		}
		return props.Files(urls...), true
	case *notionapi.URLProperty:
		return props.Text(p.URL), true
	case *notionapi.EmailProperty:
		return props.Text(p.Email), true
	case *notionapi.NumberProperty:
		return props.Number(p.Number), true
	default:
		return props.Value{}, false
	}
}

func richTextPlain(richText []notionapi.RichText) string {
	var out string
	for _, rt := range richText {
		out += rt.PlainText
	}
	return out
}

func fileURL(file, external *notionapi.FileObject) string {
	if file != nil && file.URL != "" {
		return file.URL
	}
	if external != nil && external.URL != "" {
		return external.URL
	}
	return ""
}
