package shortener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug_Deterministic(t *testing.T) {
	seeds := []string{
		"https://example.com",
		"https://example.com/other",
		"example.com/path?b=2&a=1",
		"",
	}

	for _, seed := range seeds {
		assert.Equal(t, Slug(seed, 8), Slug(seed, 8))
	}
}

func TestSlug_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{1, 8, 16} {
		slug := Slug("https://example.com", length)

		assert.Len(t, slug, length)

		for _, r := range slug {
			assert.Contains(t, base36Alphabet, string(r))
		}
	}
}

func TestSlug_DistinctSeeds(t *testing.T) {
	a := Slug("https://example.com", 8)
	b := Slug("https://example.org", 8)

	assert.NotEqual(t, a, b)
}

func TestSlug_ReseedChain(t *testing.T) {
	// The creation retry path reseeds with the raw string concatenated with
	// the rejected candidate; every link of the chain must produce a fresh
	// slug.
	const raw = "https://example.com"

	seen := make(map[string]bool)
	seed := raw

	for i := 0; i < 10; i++ {
		slug := Slug(seed, 8)

		assert.False(t, seen[slug], "slug %q repeated in reseed chain", slug)
		seen[slug] = true

		seed = raw + slug
	}
}

func TestSlug_PrefixSeedsDiffer(t *testing.T) {
	a := Slug("https://example.com", 8)
	b := Slug("https://example.com"+a, 8)

	assert.NotEqual(t, a, b)
}
