package sync

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Excluder matches logical paths against exclude patterns.
// Patterns support:
//   - Simple glob patterns matched on the base name: *.tmp, *.log
//   - Directory patterns: .git/, node_modules/
//   - Path patterns matched on the whole path: build/*, **/test/*
type Excluder struct {
	patterns []string
}

// NewExcluder validates patterns. Empty patterns are ignored.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(strings.TrimSuffix(p, "/")) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", p)
		}
		e.patterns = append(e.patterns, p)
	}
	return e, nil
}

// Excluded reports whether the logical path matches any pattern
func (e *Excluder) Excluded(relativePath string) bool {
	if e == nil || len(e.patterns) == 0 {
		return false
	}

	base := path.Base(relativePath)
	for _, pattern := range e.patterns {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			if matchDir(relativePath, dir) {
				return true
			}
			continue
		}

		if !strings.Contains(pattern, "/") {
			if match(pattern, base) {
				return true
			}
			continue
		}

		if match(pattern, relativePath) || match("**/"+pattern, relativePath) {
			return true
		}
	}

	return false
}

// matchDir reports whether any parent directory of p matches the directory pattern
func matchDir(p, dir string) bool {
	segments := strings.Split(p, "/")
	parents := segments[:len(segments)-1]

	if strings.Contains(dir, "/") {
		for i := range parents {
			if match(dir, strings.Join(parents[:i+1], "/")) || match("**/"+dir, strings.Join(parents[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	for _, seg := range parents {
		if match(dir, seg) {
			return true
		}
	}
	return false
}

func match(pattern, name string) bool {
	matched, _ := doublestar.Match(pattern, name)
	return matched
}
