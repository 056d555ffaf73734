package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/tariffmatch/backend/internal/model"
)

// normalizeDescription lowercases and collapses whitespace so trivially
// different spellings of the same product share a cache entry.
func normalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

func hashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func queryDigest(query model.ClassificationQuery) string {
	country := strings.ToLower(strings.TrimSpace(query.Country))
	if country == "" {
		country = model.DefaultCountry
	}
	return hashString(normalizeDescription(query.Description) + "::" + country)
}

// Key derives the deterministic cache key for a single query. Keys are
// scoped by country so pattern invalidation can target one schedule.
func (c *Cache) Key(query model.ClassificationQuery) string {
	country := strings.ToLower(strings.TrimSpace(query.Country))
	if country == "" {
		country = model.DefaultCountry
	}
	return fmt.Sprintf("%s:country:%s:%s", c.prefix, country, queryDigest(query))
}

// BatchKey derives an order-independent key for a batch: per-query digests
// are sorted before hashing, so clients submitting the same items in a
// different sequence share the entry.
func (c *Cache) BatchKey(queries []model.ClassificationQuery) string {
	digests := make([]string, len(queries))
	for i, q := range queries {
		digests[i] = queryDigest(q)
	}
	sort.Strings(digests)
	return fmt.Sprintf("%s:batch:%s", c.prefix, hashString(strings.Join(digests, "|")))
}
