package provider

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalizes a logical path: '/' separators, no leading or
// trailing slash, no "." or ".." segments. Backslashes are treated as
// separators so Windows-style relative paths map onto the same namespace.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", &Error{Op: "path", Path: p, Kind: ErrInvalidPath, Err: fmt.Errorf("parent segment not allowed")}
		}
	}

	cleaned := strings.Trim(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", &Error{Op: "path", Path: p, Kind: ErrInvalidPath, Err: fmt.Errorf("empty path")}
	}
	return cleaned, nil
}

// CleanScope normalizes a listing scope. Unlike CleanPath an empty scope is
// valid and means the remote root.
func CleanScope(p string) (string, error) {
	trimmed := strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if trimmed == "" || trimmed == "." {
		return "", nil
	}
	return CleanPath(trimmed)
}

// Within reports whether the logical path lies under scope. An empty scope
// contains every path.
func Within(p, scope string) bool {
	if scope == "" {
		return true
	}
	return p == scope || strings.HasPrefix(p, scope+"/")
}
