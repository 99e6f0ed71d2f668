package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
)

const (
	maxSlugLength      = 60
	maxNumericSuffix   = 10
	maxRandomSuffixTry = 5
	randomSuffixLength = 4
	fallbackSlugLength = 6
	slugRandomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	fallbackSlugPrefix = "workspace"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// baseSlug derives the first slug candidate for a workspace name.
func baseSlug(name string) string {
	value := strings.ToLower(unidecode.Unidecode(name))
	value = nonSlugChars.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	if len(value) > maxSlugLength {
		value = strings.TrimRight(value[:maxSlugLength], "-")
	}
	if value == "" || !slug.IsSlug(value) {
		return fallbackSlugPrefix + "-" + randomString(fallbackSlugLength)
	}
	return value
}

// slugCandidates yields base, base-1..base-10, then a few random suffixes.
func slugCandidates(base string) []string {
	candidates := make([]string, 0, 1+maxNumericSuffix+maxRandomSuffixTry)
	candidates = append(candidates, base)
	for i := 1; i <= maxNumericSuffix; i++ {
		candidates = append(candidates, fmt.Sprintf("%s-%d", base, i))
	}
	for i := 0; i < maxRandomSuffixTry; i++ {
		candidates = append(candidates, base+"-"+randomString(randomSuffixLength))
	}
	return candidates
}

func randomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(slugRandomAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		b.WriteByte(slugRandomAlphabet[idx.Int64()])
	}
	return b.String()
}
