// Package loam reads traces kept as documents of a Loam repository.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/rootcause/pkg/trace"
)

// Library loads invocation trees from a Loam repository. A trace is either a
// JSON document or a Markdown document whose front matter holds the tree.
type Library struct {
	Repo core.Repository
}

// New wraps an initialized repository.
func New(repo core.Repository) *Library {
	return &Library{Repo: repo}
}

// Open initializes a read-only repository at dir.
func Open(dir string) (*Library, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo), nil
}

// Load reads the trace stored under id. A root without an id is named after
// the document.
func (l *Library) Load(ctx context.Context, id string) (*trace.Invocation, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}

	var root trace.Invocation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &root,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc.Metadata); err != nil {
		return nil, fmt.Errorf("trace %s: %w", id, err)
	}
	if root.ID == "" {
		root.ID = trimExtension(id)
	}
	return trace.Tree(&root)
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
