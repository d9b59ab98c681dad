package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avolkov/tinyurl/internal/database"
	"github.com/avolkov/tinyurl/internal/models"
)

type urlRecord struct {
	ID           int64      `db:"id"`
	Slug         string     `db:"slug"`
	CanonicalURL string     `db:"canonical_url"`
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    *time.Time `db:"expires_at"`
}

func (r *urlRecord) ToShortURL() *models.ShortURL {
	return &models.ShortURL{
		ID:           r.ID,
		Slug:         r.Slug,
		CanonicalURL: r.CanonicalURL,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
	}
}

// URLRepository persists short URLs and their access logs. Every method is a
// single round-trip bounded by queryTimeout; deadline misses surface as
// database.ErrStoreUnavailable.
type URLRepository struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

func NewURLRepository(db *sqlx.DB, queryTimeout time.Duration) *URLRepository {
	return &URLRepository{
		db:           db,
		queryTimeout: queryTimeout,
	}
}

func (r *URLRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *URLRepository) Create(ctx context.Context, slug, canonicalURL string, expiresAt *time.Time) (*models.ShortURL, error) {
	const op = "database.postgres.URLRepository.Create"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	rec := new(urlRecord)
	query := `INSERT INTO urls(slug, canonical_url, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, slug, canonicalURL, expiresAt)
	if err != nil {
		if constraint, ok := uniqueViolationConstraint(err); ok {
			switch constraint {
			case slugConstraint:
				return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
			case canonicalURLConstraint:
				return nil, fmt.Errorf("%s: %w", op, database.ErrURLExists)
			}
		}
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToShortURL(), nil
}

func (r *URLRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortURL, error) {
	const op = "database.postgres.URLRepository.GetBySlug"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE slug = $1`

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToShortURL(), nil
}

func (r *URLRepository) GetByCanonicalURL(ctx context.Context, canonicalURL string) (*models.ShortURL, error) {
	const op = "database.postgres.URLRepository.GetByCanonicalURL"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE canonical_url = $1`

	err := r.db.GetContext(ctx, rec, query, canonicalURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToShortURL(), nil
}

func (r *URLRepository) List(ctx context.Context) ([]models.ShortURL, error) {
	const op = "database.postgres.URLRepository.List"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var recs []urlRecord
	query := `SELECT * FROM urls ORDER BY id`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]models.ShortURL, 0, len(recs))
	for i := range recs {
		urls = append(urls, *recs[i].ToShortURL())
	}

	return urls, nil
}

// Delete removes the record for slug and returns it. The single DELETE with
// RETURNING guarantees that of two racing deletes exactly one succeeds; the
// loser gets database.ErrURLNotFound.
func (r *URLRepository) Delete(ctx context.Context, slug string) (*models.ShortURL, error) {
	const op = "database.postgres.URLRepository.Delete"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	rec := new(urlRecord)
	query := `DELETE FROM urls WHERE slug = $1 RETURNING *`

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	return rec.ToShortURL(), nil
}

// GetStats returns the record for slug together with its access times in
// insertion order.
func (r *URLRepository) GetStats(ctx context.Context, slug string) (*models.ShortURLStats, error) {
	const op = "database.postgres.URLRepository.GetStats"

	url, err := r.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var accessedAt []time.Time
	query := `SELECT accessed_at FROM access_logs WHERE url_id = $1 ORDER BY id`

	if err := r.db.SelectContext(ctx, &accessedAt, query, url.ID); err != nil {
		if isUnavailableError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return nil, fmt.Errorf("%s: failed to list access log records: %w", op, err)
	}

	// A never-accessed URL reports an empty list, not null.
	if accessedAt == nil {
		accessedAt = []time.Time{}
	}

	return &models.ShortURLStats{
		ShortURL:   *url,
		AccessedAt: accessedAt,
	}, nil
}

// RecordAccess appends one access event for the given URL. Events are
// append-only; there is no update or delete path for them.
func (r *URLRepository) RecordAccess(ctx context.Context, urlID int64) error {
	const op = "database.postgres.URLRepository.RecordAccess"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	query := `INSERT INTO access_logs(url_id) VALUES ($1)`

	if _, err := r.db.ExecContext(ctx, query, urlID); err != nil {
		if isUnavailableError(err) {
			return fmt.Errorf("%s: %w", op, database.ErrStoreUnavailable)
		}

		return fmt.Errorf("%s: failed to create access log record: %w", op, err)
	}

	return nil
}
