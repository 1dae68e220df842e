// Package template implements template validation and the tenant-scoped
// template lifecycle.
package template

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {name}. The class excludes both braces so an
// inner "{" restarts the match and "}" ends it at the first occurrence.
var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// ExtractVariables returns the distinct placeholder names referenced by content
// in order of first occurrence. Whitespace inside the braces is trimmed and
// blank placeholders are ignored.
func ExtractVariables(content string) []string {
	if content == "" {
		return []string{}
	}

	matches := placeholderPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))

	for _, match := range matches {
		name := strings.TrimSpace(match[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names
}
