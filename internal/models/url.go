package models

import "time"

// ShortURL represents a shortened URL and its associated metadata.
type ShortURL struct {
	// ID is the unique identifier for the record, assigned by the store on creation.
	ID int64
	// Slug is the short identifier appended to the service base URL.
	Slug string
	// CanonicalURL is the normalized form of the submitted URL, used as the deduplication key.
	CanonicalURL string
	// CreatedAt is the timestamp indicating when the record was created.
	CreatedAt time.Time
	// ExpiresAt is the optional expiry; nil means the URL never expires.
	ExpiresAt *time.Time
}

// ShortURLStats is a ShortURL together with its recorded access times.
type ShortURLStats struct {
	ShortURL

	// AccessedAt lists the times of successful redirects, in access order.
	AccessedAt []time.Time
}
