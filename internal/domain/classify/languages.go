package classify

import (
	"path"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"
)

// dataLanguages are linguist languages that describe data or prose, not code.
var dataLanguages = map[string]struct{}{
	"markdown": {}, "json": {}, "yaml": {}, "toml": {}, "xml": {}, "text": {},
	"csv": {}, "ini": {}, "restructuredtext": {}, "json with comments": {},
	"svg": {}, "asciidoc": {}, "ignore list": {}, "git attributes": {},
}

// languageAliases folds common stack spellings onto linguist names.
var languageAliases = map[string]string{
	"golang": "go",
	"js":     "javascript",
	"ts":     "typescript",
	"py":     "python",
	"cpp":    "c++",
	"csharp": "c#",
	"rb":     "ruby",
	"sh":     "shell",
	"node":   "javascript",
	"nodejs": "javascript",
}

// LanguageTag lowercases a language name and folds known aliases.
func LanguageTag(s string) string {
	l := strings.ToLower(strings.TrimSpace(s))
	if a, ok := languageAliases[l]; ok {
		return a
	}
	return l
}

// DetectLanguages returns the sorted, deduplicated language tags of the
// changed paths, ignoring vendored files and data formats, unioned with any
// languages supplied by ingestion.
func DetectLanguages(paths []string, supplied []string) []string {
	seen := make(map[string]struct{})
	for _, p := range paths {
		if p == "" || enry.IsVendor(p) {
			continue
		}
		lang := LanguageTag(enry.GetLanguage(path.Base(p), nil))
		if lang == "" {
			continue
		}
		if _, data := dataLanguages[lang]; data {
			continue
		}
		seen[lang] = struct{}{}
	}
	for _, s := range supplied {
		if l := LanguageTag(s); l != "" {
			seen[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}
