package shortener

import (
	"hash/fnv"
	"math/rand"
	"strings"
)

// base36Alphabet is the symbol set slugs are drawn from.
const base36Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// DefaultSlugLength is the slug length used when no explicit length is configured.
const DefaultSlugLength = 8

// Slug derives a fixed-length identifier from seed. The same seed yields the
// same slug on every machine and every run, which the creation retry protocol
// and its tests rely on. The output is not a source of entropy and must not
// be used where unpredictability is a security requirement.
func Slug(seed string, length int) string {
	h := fnv.New64a()
	h.Write([]byte(seed))

	rnd := rand.New(rand.NewSource(int64(h.Sum64())))

	var b strings.Builder
	b.Grow(length)

	for i := 0; i < length; i++ {
		b.WriteByte(base36Alphabet[rnd.Intn(len(base36Alphabet))])
	}

	return b.String()
}
