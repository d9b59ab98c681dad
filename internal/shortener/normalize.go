// Package shortener contains the pure core of the service: URL
// canonicalization and deterministic slug generation.
package shortener

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidURL is returned when no host can be determined from the submitted URL.
var ErrInvalidURL = errors.New("invalid url")

// Normalize maps a raw URL string to the canonical form used as the
// deduplication key. Scheme-less input gets a default "http://" scheme, the
// host is lower-cased (an explicit port is kept verbatim), an empty path
// becomes "/" and query parameters are re-encoded in sorted order. Two URLs
// that differ only in query parameter order, host letter case or the implicit
// default scheme/path normalize to the same string.
func Normalize(raw string) (string, error) {
	const op = "shortener.Normalize"

	u, err := parseURL(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = orderQuery(u.RawQuery)

	return u.String(), nil
}

// parseURL parses raw, prepending a default scheme when none is present so
// that bare "host/path" and "host:port/path" inputs keep their authority
// component. Opaque URLs ("mailto:user@host") take the same prepend path:
// any input that yields a host is accepted, anything else is ErrInvalidURL.
func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		u, err = url.Parse("http://" + strings.TrimLeft(raw, ":/"))
		if err != nil {
			return nil, ErrInvalidURL
		}
	}

	if u.Host == "" {
		return nil, ErrInvalidURL
	}

	return u, nil
}

type queryPair struct {
	key   string
	value string
}

// orderQuery rewrites a raw query string with its key=value pairs sorted by
// the full (key, value) tuple. Blank values are kept. A key or value with an
// invalid escape sequence is kept verbatim and re-encoded, so "x=%zz" becomes
// "x=%25zz" rather than vanishing; no pair is ever dropped.
func orderQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var pairs []queryPair

	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(part, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}

		pairs = append(pairs, queryPair{key: key, value: value})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}

	return b.String()
}
