package images

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Standard Markdown image syntax, with an optional title suffix.
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	// Wiki-link embed syntax used by local vaults: ![[name.png]]
	wikiEmbedRe = regexp.MustCompile(`!\[\[([^\]]+)\]\]`)
)

// ExtractRemote returns the remote image URLs embedded in a Markdown
// body, first-occurrence order preserved, repeated locators extracted
// once.
func ExtractRemote(body string) []string {
	seen := make(map[string]struct{})
	var locators []string
	for _, match := range markdownImageRe.FindAllStringSubmatch(body, -1) {
		locator := match[1]
		if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
			continue
		}
		if _, ok := seen[locator]; ok {
			continue
		}
		seen[locator] = struct{}{}
		locators = append(locators, locator)
	}
	return locators
}

// ExtractLocal returns the local image paths referenced by a Markdown
// body, resolved against the source file's directory. Both standard
// syntax with a filesystem path and wiki-link embeds are recognized.
// Resolved paths that do not exist are dropped with a warning.
func ExtractLocal(body, baseDir string) []string {
	seen := make(map[string]struct{})
	var locators []string

	add := func(resolved string) {
		if _, ok := seen[resolved]; ok {
			return
		}
		if _, err := os.Stat(resolved); err != nil {
			log.Printf("images: dropping unresolvable reference %s: %v", resolved, err)
			return
		}
		seen[resolved] = struct{}{}
		locators = append(locators, resolved)
	}

	for _, match := range markdownImageRe.FindAllStringSubmatch(body, -1) {
		locator := match[1]
		if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
			continue
		}
		add(resolveLocalPath(locator, baseDir))
	}
	for _, match := range wikiEmbedRe.FindAllStringSubmatch(body, -1) {
		add(resolveLocalPath(match[1], baseDir))
	}
	return locators
}

func resolveLocalPath(locator, baseDir string) string {
	if filepath.IsAbs(locator) {
		return filepath.Clean(locator)
	}
	return filepath.Clean(filepath.Join(baseDir, locator))
}
