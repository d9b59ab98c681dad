package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/tinyurl/internal/database"
	"github.com/avolkov/tinyurl/internal/models"
	"github.com/avolkov/tinyurl/internal/shortener"
)

var (
	// ErrURLExpired is returned by ResolveSlug when the record exists but its
	// expiry has passed.
	ErrURLExpired = errors.New("url expired")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries
	// for allocating a free slug is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for allocating slug")
)

// URLRepository defines the interface for working with short URLs at the
// business logic layer.
type URLRepository interface {
	// Create inserts a new short URL record. It returns
	// database.ErrSlugExists or database.ErrURLExists when the insert loses
	// a uniqueness race on the slug or the canonical URL.
	Create(ctx context.Context, slug, canonicalURL string, expiresAt *time.Time) (*models.ShortURL, error)

	// GetBySlug retrieves a record by its slug.
	GetBySlug(ctx context.Context, slug string) (*models.ShortURL, error)

	// GetByCanonicalURL retrieves a record by its canonical URL.
	GetByCanonicalURL(ctx context.Context, canonicalURL string) (*models.ShortURL, error)

	// GetStats retrieves a record together with its ordered access times.
	GetStats(ctx context.Context, slug string) (*models.ShortURLStats, error)

	// List returns all short URL records.
	List(ctx context.Context) ([]models.ShortURL, error)

	// Delete removes a record by its slug and returns the removed record.
	Delete(ctx context.Context, slug string) (*models.ShortURL, error)

	// RecordAccess appends one access event for the given URL.
	RecordAccess(ctx context.Context, urlID int64) error
}

// URLService owns the create/list/stats/delete/redirect lifecycle of short
// URLs: canonicalization, dedup, collision-safe slug allocation and expiry
// enforcement.
type URLService struct {
	repo       URLRepository
	slugLength int
	now        func() time.Time
}

// NewURLService creates a new URLService with the provided repository and
// slug length.
func NewURLService(repo URLRepository, slugLength int) *URLService {
	if slugLength <= 0 {
		slugLength = shortener.DefaultSlugLength
	}

	return &URLService{
		repo:       repo,
		slugLength: slugLength,
		now:        time.Now,
	}
}

// ShortenURL registers rawURL and returns its record. The returned bool is
// true when a new record was created and false when an equivalent URL was
// already registered, in which case the existing record is returned
// unchanged.
//
// The slug is a deterministic function of the raw submitted string; on a slug
// collision the generator is reseeded with the raw string concatenated with
// the rejected candidate, so the retry chain is reproducible. The store's
// uniqueness constraints are the final arbiter under concurrent creation: a
// canonical URL conflict means another caller won the insert, and that
// caller's record is returned.
func (s *URLService) ShortenURL(ctx context.Context, rawURL string, expiresAt *time.Time) (*models.ShortURL, bool, error) {
	const op = "service.URLService.ShortenURL"
	const maxRetries = 10

	canonicalURL, err := shortener.Normalize(rawURL)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.repo.GetByCanonicalURL(ctx, canonicalURL)
	if err == nil {
		return url, false, nil
	}
	if !errors.Is(err, database.ErrURLNotFound) {
		return nil, false, fmt.Errorf("%s: failed to check for existing url: %w", op, err)
	}

	seed := rawURL

	for i := 0; i < maxRetries; i++ {
		slug := shortener.Slug(seed, s.slugLength)

		url, err := s.repo.Create(ctx, slug, canonicalURL, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrSlugExists) {
				seed = rawURL + slug
				continue
			}

			if errors.Is(err, database.ErrURLExists) {
				url, err := s.repo.GetByCanonicalURL(ctx, canonicalURL)
				if err != nil {
					return nil, false, fmt.Errorf("%s: failed to re-read url after losing creation race: %w", op, err)
				}
				return url, false, nil
			}

			return nil, false, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, true, nil
	}

	return nil, false, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveSlug returns the record a redirect should target. It fails with
// database.ErrURLNotFound for unknown slugs and ErrURLExpired once the expiry
// has passed. One access event is appended after the expiry check passes and
// before control returns; expired and missing slugs never produce an event.
func (s *URLService) ResolveSlug(ctx context.Context, slug string) (*models.ShortURL, error) {
	const op = "service.URLService.ResolveSlug"

	url, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve slug: %w", op, err)
	}

	if url.ExpiresAt != nil && !s.now().Before(*url.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	if err := s.repo.RecordAccess(ctx, url.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to record access: %w", op, err)
	}

	return url, nil
}

// GetURLStats retrieves the record for slug together with its access times.
func (s *URLService) GetURLStats(ctx context.Context, slug string) (*models.ShortURLStats, error) {
	const op = "service.URLService.GetURLStats"

	stats, err := s.repo.GetStats(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return stats, nil
}

// ListURLs returns all short URL records.
func (s *URLService) ListURLs(ctx context.Context) ([]models.ShortURL, error) {
	const op = "service.URLService.ListURLs"

	urls, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// DeleteURL removes the record for slug and returns it. A concurrent double
// delete is resolved by the store: only one caller gets the record back.
func (s *URLService) DeleteURL(ctx context.Context, slug string) (*models.ShortURL, error) {
	const op = "service.URLService.DeleteURL"

	url, err := s.repo.Delete(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return url, nil
}
