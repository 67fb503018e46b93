package domain_test

import (
	"strings"
	"testing"

	"medrag-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey_Deterministic(t *testing.T) {
	a := domain.CacheKey("retrieve", "what a1c indicates diabetes")
	b := domain.CacheKey("retrieve", "what a1c indicates diabetes")
	assert.Equal(t, a, b)
}

func TestCacheKey_DoesNotContainQueryText(t *testing.T) {
	key := domain.CacheKey("retrieve", "patient has stage 3 kidney disease")
	assert.NotContains(t, key, "kidney")
	assert.True(t, strings.HasPrefix(key, "medrag:retrieve:"))
}

func TestCacheKey_OperationAndTextBothDiscriminate(t *testing.T) {
	assert.NotEqual(t,
		domain.CacheKey("retrieve", "text"),
		domain.CacheKey("answer", "text"))
	assert.NotEqual(t,
		domain.CacheKey("retrieve", "text one"),
		domain.CacheKey("retrieve", "text two"))

	// The separator prevents ("ab","c") from colliding with ("a","bc").
	assert.NotEqual(t,
		domain.CacheKey("ab", "c"),
		domain.CacheKey("a", "bc"))
}

func TestMedicalQuery_HasBiomarkers(t *testing.T) {
	assert.False(t, domain.MedicalQuery{Question: "q"}.HasBiomarkers())
	assert.False(t, domain.MedicalQuery{Question: "q", Biomarkers: map[string]float64{}}.HasBiomarkers())
	assert.True(t, domain.MedicalQuery{Question: "q", Biomarkers: map[string]float64{"HbA1c": 8.2}}.HasBiomarkers())
}
