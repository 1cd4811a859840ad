package props

// Canonical field mappings shared by the remote and local normalizers.
// Alias lists carry the renamed variants seen in user workspaces,
// including the Chinese property names the source system ships with.
var (
	FieldTitle = Mapping{
		Candidates: []string{"Title", "Name", "标题"},
		Kind:       KindText,
		Default:    Text(""),
	}
	FieldPublished = Mapping{
		Candidates: []string{"Published", "Publish", "发布"},
		Kind:       KindBool,
		Default:    Bool(false),
	}
	FieldDraft = Mapping{
		Candidates: []string{"Draft", "草稿"},
		Kind:       KindBool,
		Default:    Bool(false),
	}
	FieldArchived = Mapping{
		Candidates: []string{"Archived", "归档"},
		Kind:       KindBool,
		Default:    Bool(false),
	}
	FieldCategories = Mapping{
		Candidates: []string{"Category", "Categories", "分类"},
		Kind:       KindList,
		Default:    List(),
	}
	FieldTags = Mapping{
		Candidates: []string{"Tags", "Tag", "标签"},
		Kind:       KindList,
		Default:    List(),
	}
	FieldExcerpt = Mapping{
		Candidates: []string{"Excerpt", "Summary", "Description", "摘要"},
		Kind:       KindText,
		Default:    Text(""),
	}
	FieldCover = Mapping{
		Candidates: []string{"Cover", "FeaturedImage", "封面"},
		Kind:       KindFiles,
		Default:    Files(),
	}
	FieldGallery = Mapping{
		Candidates: []string{"Gallery", "Images", "图库"},
		Kind:       KindFiles,
		Default:    Files(),
	}
	FieldSlug = Mapping{
		Candidates: []string{"Slug", "slug"},
		Kind:       KindText,
		Required:   true,
	}
	FieldDate = Mapping{
		Candidates: []string{"Date", "PublishDate", "日期"},
		Kind:       KindDate,
		Default:    Date(timeZero),
	}
)
