package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_RetrievalParameters_Defaults(t *testing.T) {
	envVars := []string{
		"RETRIEVAL_TOP_K",
		"RETRIEVAL_RRF_K",
		"RETRIEVAL_CACHE_TTL_SEC",
		"EMBED_CACHE_SIZE",
	}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 10, cfg.RetrievalTopK, "topK should default to 10")
	assert.Equal(t, 60.0, cfg.RRFK, "rrfK should default to 60.0")
	assert.Equal(t, 300, cfg.CacheTTLSeconds, "cache TTL should default to 5 minutes")
	assert.Equal(t, 512, cfg.EmbedCacheSize)
}

func TestLoad_RetrievalParameters_FromEnv(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "25")
	t.Setenv("RETRIEVAL_RRF_K", "30.0")
	t.Setenv("RETRIEVAL_CACHE_TTL_SEC", "60")

	cfg := Load()

	assert.Equal(t, 25, cfg.RetrievalTopK)
	assert.Equal(t, 30.0, cfg.RRFK)
	assert.Equal(t, 60, cfg.CacheTTLSeconds)
}

func TestLoad_JudgeParameters(t *testing.T) {
	_ = os.Unsetenv("JUDGE_MODEL")
	_ = os.Unsetenv("JUDGE_TIMEOUT_SEC")
	_ = os.Unsetenv("JUDGE_MAX_RPS")

	cfg := Load()
	assert.Equal(t, "llama3.1:8b", cfg.JudgeModel)
	assert.Equal(t, 120, cfg.JudgeTimeoutSec)
	assert.Equal(t, 0.0, cfg.JudgeMaxRPS, "rate limiting should be off by default")

	t.Setenv("JUDGE_MAX_RPS", "2.5")
	assert.Equal(t, 2.5, Load().JudgeMaxRPS)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")
	t.Setenv("RETRIEVAL_RRF_K", "")

	cfg := Load()

	assert.Equal(t, 10, cfg.RetrievalTopK)
	assert.Equal(t, 60.0, cfg.RRFK)
}

func TestGetSecret_PrefersEnvOverFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	assert.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))

	t.Setenv("TEST_SECRET_FILE", secretFile)
	_ = os.Unsetenv("TEST_SECRET")
	assert.Equal(t, "from-file", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"),
		"file content should be trimmed")

	t.Setenv("TEST_SECRET", "from-env")
	assert.Equal(t, "from-env", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"))
}

func TestGetSecret_FallbackWhenNothingSet(t *testing.T) {
	_ = os.Unsetenv("TEST_SECRET")
	_ = os.Unsetenv("TEST_SECRET_FILE")
	assert.Equal(t, "fallback", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"))
}
