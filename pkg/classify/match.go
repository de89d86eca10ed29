package classify

import (
	"path"
	"strings"
)

// MatchPattern reports whether a repository-relative file path matches a
// rule pattern. Patterns use path.Match syntax per segment, with two
// extensions: "**" matches any number of segments, and a pattern without a
// slash also matches against the file's base name ("*.md" matches
// "docs/readme.md").
func MatchPattern(pattern, file string) bool {
	file = path.Clean(strings.TrimPrefix(file, "./"))

	if strings.Contains(pattern, "**") {
		return matchSegments(strings.Split(pattern, "/"), strings.Split(file, "/"))
	}

	if ok, _ := path.Match(pattern, file); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, _ := path.Match(pattern, path.Base(file)); ok {
			return true
		}
	}
	return false
}

func matchSegments(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		// "**" may consume zero or more leading segments.
		if matchSegments(pat[1:], parts) {
			return true
		}
		if len(parts) > 0 {
			return matchSegments(pat, parts[1:])
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if ok, _ := path.Match(pat[0], parts[0]); !ok {
		return false
	}
	return matchSegments(pat[1:], parts[1:])
}
