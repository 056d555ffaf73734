package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tariffmatch/backend/internal/model"
)

func newTestCache() *Cache {
	return New(newMemStore(), Config{})
}

func TestKeyDeterminism(t *testing.T) {
	c := newTestCache()

	q := model.ClassificationQuery{Description: "Cotton T-shirt", Country: "default"}
	assert.Equal(t, c.Key(q), c.Key(q))

	other := model.ClassificationQuery{Description: "Cotton T-shirt", Country: "turkmenistan"}
	assert.NotEqual(t, c.Key(q), c.Key(other))

	different := model.ClassificationQuery{Description: "Leather handbag", Country: "default"}
	assert.NotEqual(t, c.Key(q), c.Key(different))
}

func TestKeyNormalization(t *testing.T) {
	c := newTestCache()

	a := model.ClassificationQuery{Description: "Cotton   T-Shirt", Country: "Default"}
	b := model.ClassificationQuery{Description: " cotton t-shirt ", Country: "default"}
	assert.Equal(t, c.Key(a), c.Key(b))
}

func TestKeyCountryScoping(t *testing.T) {
	c := newTestCache()

	q := model.ClassificationQuery{Description: "Cotton t-shirt", Country: "default"}
	assert.Contains(t, c.Key(q), "match:country:default:")

	blank := model.ClassificationQuery{Description: "Cotton t-shirt"}
	assert.Contains(t, c.Key(blank), "match:country:default:")
}

func TestBatchKeyOrderIndependent(t *testing.T) {
	c := newTestCache()

	q1 := model.ClassificationQuery{Description: "Cotton t-shirt", Country: "default"}
	q2 := model.ClassificationQuery{Description: "Leather handbag", Country: "default"}
	q3 := model.ClassificationQuery{Description: "Running shoes", Country: "default"}

	forward := c.BatchKey([]model.ClassificationQuery{q1, q2, q3})
	reversed := c.BatchKey([]model.ClassificationQuery{q3, q2, q1})
	assert.Equal(t, forward, reversed)

	subset := c.BatchKey([]model.ClassificationQuery{q1, q2})
	assert.NotEqual(t, forward, subset)
}
