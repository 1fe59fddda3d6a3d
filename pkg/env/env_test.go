package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenvOrDefault(t *testing.T) {
	t.Setenv("FLUREE_TEST_STR", "value")

	assert.Equal(t, "value", GetenvOrDefault("FLUREE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetenvOrDefault("FLUREE_TEST_MISSING", "fallback"))
}

func TestGetenvIntOrDefault(t *testing.T) {
	t.Setenv("FLUREE_TEST_INT", "42")
	t.Setenv("FLUREE_TEST_BAD_INT", "forty-two")

	assert.Equal(t, int64(42), GetenvIntOrDefault("FLUREE_TEST_INT", 7))
	assert.Equal(t, int64(7), GetenvIntOrDefault("FLUREE_TEST_BAD_INT", 7))
}

func TestGetenvBoolOrDefault(t *testing.T) {
	t.Setenv("FLUREE_TEST_BOOL", "true")

	assert.True(t, GetenvBoolOrDefault("FLUREE_TEST_BOOL", false))
	assert.True(t, GetenvBoolOrDefault("FLUREE_TEST_MISSING", true))
}

func TestSetConfigFromEnvVars(t *testing.T) {
	type config struct {
		Name        string `env:"FLUREE_TEST_NAME"`
		Parallelism int    `env:"FLUREE_TEST_PARALLELISM"`
		Enabled     bool   `env:"FLUREE_TEST_ENABLED"`
		Ignored     string
	}

	t.Setenv("FLUREE_TEST_NAME", "ledger")
	t.Setenv("FLUREE_TEST_PARALLELISM", "8")
	t.Setenv("FLUREE_TEST_ENABLED", "true")

	cfg := &config{}
	require.NoError(t, SetConfigFromEnvVars(cfg))

	assert.Equal(t, "ledger", cfg.Name)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Ignored)
}

func TestSetConfigFromEnvVarsRequiresPointer(t *testing.T) {
	type config struct{}

	assert.Error(t, SetConfigFromEnvVars(config{}))
}
