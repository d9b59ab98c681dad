package database

import "errors"

var (
	// ErrSlugExists is returned when an insert hits the unique constraint
	// on the slug column. The creation retry path resolves it by reseeding
	// the generator; it is never surfaced to callers.
	ErrSlugExists = errors.New("slug exists")
	// ErrURLExists is returned when an insert hits the unique constraint on
	// the canonical URL column, meaning a concurrent caller registered an
	// equivalent URL first.
	ErrURLExists = errors.New("url exists")
	// ErrURLNotFound is returned when no record exists for the given slug
	// or canonical URL.
	ErrURLNotFound = errors.New("url not found")
	// ErrStoreUnavailable is returned when a store round-trip misses its
	// deadline. It signals a transient infrastructure failure, not a data
	// integrity problem.
	ErrStoreUnavailable = errors.New("store unavailable")
)
