// Package docs is the typed layer over the raw blob store. Each
// entity type lives in exactly one JSON document: an envelope of
// items plus metadata. The envelope's metadata is restamped on every
// save so that totalCount always equals len(items) after a write.
package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qaflow/internal/domain"
)

// Store is the raw document access contract the service layer depends
// on. gitstore.Client is the production implementation.
type Store interface {
	Read(ctx context.Context, path string) (content []byte, version string, err error)
	Write(ctx context.Context, path string, content []byte, message, expectedVersion string) (newVersion string, err error)
}

// Document paths inside the backing repository. One document per
// entity type.
const (
	PathPullRequests = "data/pull_requests.json"
	PathTestCases    = "data/test_cases.json"
	PathAssignments  = "data/test_assignments.json"
	PathUsers        = "data/users.json"
	PathIssues       = "data/issues.json"
	PathTestResults  = "data/test_results.json"
	PathActivity     = "data/activity.json"
)

type Metadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	TotalCount  int       `json:"totalCount"`
	// Statistics is the collection's derived-counter block. It is
	// recomputed by the caller before every save and never read back
	// as a source of truth.
	Statistics any `json:"statistics,omitempty"`
}

type Document[T any] struct {
	Items    []T      `json:"items"`
	Metadata Metadata `json:"metadata"`
}

// Load fetches and decodes the document at path. The version token
// accompanies the document through the caller's read-compute-write
// unit. Fails with domain.ErrNotFound when the document is absent.
func Load[T any](ctx context.Context, store Store, path string) (Document[T], string, error) {
	var doc Document[T]

	content, version, err := store.Read(ctx, path)
	if err != nil {
		return doc, "", err
	}

	if err := json.Unmarshal(content, &doc); err != nil {
		return doc, "", fmt.Errorf("docs: failed to decode %s: %w", path, err)
	}
	if doc.Items == nil {
		doc.Items = []T{}
	}

	return doc, version, nil
}

// LoadOrInit is Load, except an absent document comes back as an
// empty one with an empty version token — the subsequent Save then
// creates it.
func LoadOrInit[T any](ctx context.Context, store Store, path string) (Document[T], string, error) {
	doc, version, err := Load[T](ctx, store, path)
	if errors.Is(err, domain.ErrNotFound) {
		return Document[T]{Items: []T{}}, "", nil
	}
	return doc, version, err
}

// Save restamps the document's metadata (lastUpdated, totalCount),
// encodes it, and writes it against the version token from the
// caller's read. Statistics must already be set by the caller if the
// collection carries any.
func Save[T any](ctx context.Context, store Store, path string, doc Document[T], message, expectedVersion string, now time.Time) (string, error) {
	doc.Metadata.LastUpdated = now.UTC()
	doc.Metadata.TotalCount = len(doc.Items)

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("docs: failed to encode %s: %w", path, err)
	}

	return store.Write(ctx, path, content, message, expectedVersion)
}
