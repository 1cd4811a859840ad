package images

import (
	"path/filepath"
	"strings"

	"pagesync/internal/model"
)

// urlMap builds the locator→resolvedURL substitution map. References
// that failed resolution have no ResolvedURL and are absent, so their
// original locators survive in the body untouched.
func urlMap(refs []model.ImageRef) map[string]string {
	m := make(map[string]string, len(refs))
	for _, ref := range refs {
		if ref.ResolvedURL != "" {
			m[ref.Locator] = ref.ResolvedURL
		}
	}
	return m
}

// RewriteRemote substitutes every occurrence of each source URL with its
// storage URL. Purely textual; some platforms repeat the same image URL
// across blocks, so all occurrences are replaced.
func RewriteRemote(body string, refs []model.ImageRef) string {
	for locator, url := range urlMap(refs) {
		body = strings.ReplaceAll(body, locator, url)
	}
	return body
}

// RewriteLocal substitutes local image references in two passes: wiki
// embeds become standard Markdown syntax pointing at the storage URL,
// and standard-syntax filesystem paths are replaced in place. Lookup is
// keyed by the full resolved path, not the basename, so same-named
// files in different directories cannot collide.
func RewriteLocal(body, baseDir string, refs []model.ImageRef) string {
	urls := urlMap(refs)

	body = wikiEmbedRe.ReplaceAllStringFunc(body, func(match string) string {
		name := wikiEmbedRe.FindStringSubmatch(match)[1]
		url, ok := urls[resolveLocalPath(name, baseDir)]
		if !ok {
			return match
		}
		return "![" + strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) + "](" + url + ")"
	})

	body = markdownImageRe.ReplaceAllStringFunc(body, func(match string) string {
		locator := markdownImageRe.FindStringSubmatch(match)[1]
		if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
			return match
		}
		url, ok := urls[resolveLocalPath(locator, baseDir)]
		if !ok {
			return match
		}
		return strings.Replace(match, "("+locator, "("+url, 1)
	})

	return body
}
