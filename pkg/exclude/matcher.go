// Package exclude compiles user-supplied exclude patterns into a matcher
// usable during the scan walk.
package exclude

import (
	"strings"

	"github.com/gobwas/glob"
)

// Matcher tests whether a path should be excluded from the scan. A path is
// excluded if the compiled glob set matches it, or if any of its path
// components equals one of the raw user-supplied names exactly.
type Matcher struct {
	globs  []glob.Glob
	rawSet map[string]struct{}
}

// Compile expands and compiles patterns into a Matcher. Expansion rule: a
// pattern containing "*", ending in "/", or containing "." is passed
// through verbatim; a bare name like "node_modules" expands to
// "**/node_modules" and "**/node_modules/**" so it matches at any depth
// whether it names a file or a directory.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{rawSet: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.rawSet[p] = struct{}{}

		for _, expanded := range expand(p) {
			g, err := glob.Compile(expanded, '/')
			if err != nil {
				return nil, err
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

func expand(pattern string) []string {
	if strings.ContainsAny(pattern, "*") || strings.HasSuffix(pattern, "/") || strings.Contains(pattern, ".") {
		return []string{pattern}
	}
	return []string{"**/" + pattern, "**/" + pattern + "/**"}
}

// Match reports whether path should be excluded. path should be relative to
// the scan root, using "/" separators, matching how patterns are authored.
func (m *Matcher) Match(path string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	if len(m.rawSet) == 0 {
		return false
	}
	for _, component := range strings.Split(path, "/") {
		if _, ok := m.rawSet[component]; ok {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher has no patterns configured, letting
// callers skip the per-path check entirely on the hot path.
func (m *Matcher) Empty() bool {
	return m == nil || (len(m.globs) == 0 && len(m.rawSet) == 0)
}
