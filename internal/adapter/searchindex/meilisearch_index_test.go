package searchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Hit maps come back from Meilisearch as map[string]interface{} with no type
// guarantees, so the extraction helpers must tolerate missing and mistyped
// fields.

func TestGetString(t *testing.T) {
	hit := map[string]interface{}{
		"id":      "chunk-1",
		"title":   "Glycemic Targets",
		"ordinal": 3,
		"nested":  map[string]interface{}{"x": "y"},
	}

	assert.Equal(t, "chunk-1", getString(hit, "id"))
	assert.Equal(t, "Glycemic Targets", getString(hit, "title"))
	assert.Equal(t, "", getString(hit, "ordinal"), "non-string value yields empty")
	assert.Equal(t, "", getString(hit, "nested"))
	assert.Equal(t, "", getString(hit, "missing"))
}

func TestGetFloat(t *testing.T) {
	hit := map[string]interface{}{
		"_rankingScore": 0.87,
		"id":            "chunk-1",
	}

	assert.InDelta(t, 0.87, getFloat(hit, "_rankingScore"), 1e-9)
	assert.Zero(t, getFloat(hit, "id"), "non-float value yields zero")
	assert.Zero(t, getFloat(hit, "missing"))
}
