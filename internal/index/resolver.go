// Package index resolves plugin references from a remote or local index.
package index

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/egoavara/plugforge/internal/plugin"
)

// Opener opens an index location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Document is the mapping form of an index file.
type Document struct {
	Plugins []plugin.Reference `yaml:"plugins"`
}

// Resolver queries plugin indexes.
type Resolver struct {
	opener Opener
	logger *slog.Logger
}

// NewResolver creates a Resolver reading indexes through opener.
func NewResolver(opener Opener, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{opener: opener, logger: logger}
}

// Search returns the references in the index at location whose name contains
// query, case-insensitively, in index order. An empty query matches everything.
// No match is not an error.
func (r *Resolver) Search(ctx context.Context, location, query string) ([]plugin.Reference, error) {
	if strings.TrimSpace(location) == "" {
		return nil, plugin.ErrConfigMissing("index.default",
			"set a default plugin index or pass --index")
	}

	refs, err := r.load(ctx, location)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var matches []plugin.Reference
	for _, ref := range refs {
		if needle == "" || strings.Contains(strings.ToLower(ref.Name), needle) {
			matches = append(matches, ref)
		}
	}

	r.logger.DebugContext(ctx, "index searched",
		"location", location, "query", query, "entries", len(refs), "matches", len(matches))
	return matches, nil
}

func (r *Resolver) load(ctx context.Context, location string) ([]plugin.Reference, error) {
	rc, err := r.opener.Open(ctx, location)
	if err != nil {
		return nil, oops.Code(plugin.CodeIndexUnavailable).
			With("location", location).
			Wrapf(err, "plugin index %s is unavailable", location)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, oops.Code(plugin.CodeIndexUnavailable).
			With("location", location).
			Wrapf(err, "failed to read plugin index %s", location)
	}

	refs, err := Parse(data)
	if err != nil {
		return nil, oops.With("location", location).Wrap(err)
	}
	return refs, nil
}

// Parse decodes an index document: either a list of references or a mapping
// with a plugins key. Every entry is validated.
func Parse(data []byte) ([]plugin.Reference, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, oops.Code(plugin.CodeIndexInvalid).Wrapf(err, "failed to parse plugin index")
	}

	var refs []plugin.Reference
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&refs); err != nil {
			return nil, oops.Code(plugin.CodeIndexInvalid).Wrapf(err, "failed to decode plugin index")
		}
	case yaml.MappingNode:
		var doc Document
		if err := root.Decode(&doc); err != nil {
			return nil, oops.Code(plugin.CodeIndexInvalid).Wrapf(err, "failed to decode plugin index")
		}
		refs = doc.Plugins
	default:
		return nil, oops.Code(plugin.CodeIndexInvalid).
			Errorf("plugin index must be a list of plugins or a mapping with a plugins key")
	}

	for i, ref := range refs {
		if err := ref.Validate(); err != nil {
			return nil, oops.With("entry", i).Wrap(err)
		}
	}
	return refs, nil
}
