// Package repo defines the generic Repository interface and its Neo4j
// implementation used for job-card persistence.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no node matches the requested id.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic persistence interface keyed by ID.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination, equality filtering and ordering for List.
type ListOpts struct {
	Offset int
	Limit  int
	// Filter matches node properties by equality. Keys that are not plain
	// identifiers are ignored.
	Filter map[string]any
	// OrderBy names a node property; empty keeps storage order.
	OrderBy string
	Desc    bool
}
