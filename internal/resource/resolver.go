// Package resource maps request paths onto the single file Fuelgate serves.
package resource

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned for every path that does not resolve to the
// served file. Traversal attempts and honest misses are not distinguished.
var ErrNotFound = errors.New("not found")

// Resolver canonicalizes request paths against a base directory and
// accepts exactly one of them.
type Resolver struct {
	dir    string
	served string
}

// NewResolver serves file from dir. file must be a plain file name.
func NewResolver(dir, file string) (*Resolver, error) {
	if file == "" || file != filepath.Base(file) || file == "." || file == ".." {
		return nil, fmt.Errorf("served file must be a plain file name, got %q", file)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving served directory: %w", err)
	}
	return &Resolver{dir: abs, served: filepath.Join(abs, file)}, nil
}

// Path returns the canonical absolute path of the served file.
func (r *Resolver) Path() string { return r.served }

// Dir returns the canonical absolute directory of the served file.
func (r *Resolver) Dir() string { return r.dir }

// Resolve takes the escaped request path (as from url.URL.EscapedPath),
// decodes it, resolves dot segments and redundant separators relative to
// the served directory, and returns the served path only on exact match.
func (r *Resolver) Resolve(escapedPath string) (string, error) {
	decoded, err := url.PathUnescape(escapedPath)
	if err != nil {
		return "", ErrNotFound
	}
	if strings.ContainsRune(decoded, 0) {
		return "", ErrNotFound
	}

	rel := filepath.FromSlash(strings.TrimLeft(decoded, "/"))
	candidate := filepath.Join(r.dir, rel)
	if candidate != r.served {
		return "", ErrNotFound
	}
	return candidate, nil
}
