package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MACROTUNE_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("MACROTUNE_MODEL", "")
	t.Setenv("MACROTUNE_POLL_INTERVAL_SECONDS", "")
	t.Setenv("MACROTUNE_POLL_DEADLINE", "")
	t.Setenv("MACROTUNE_REQUESTS_PER_SECOND", "")
	t.Setenv("MACROTUNE_FINE_TUNED_MODEL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "macros_en", c.SourceDir)
	assert.Equal(t, "macros_gen", c.GenDir)
	assert.Equal(t, "macro_", c.TrainingPrefix)
	assert.Equal(t, "fine_tune_chat_gpt/training_data.jsonl", c.TrainingPath)
	assert.Equal(t, "gpt-4-0125-preview", c.Model)
	assert.Equal(t, 60, c.PollIntervalSeconds)
	assert.Equal(t, "https://api.openai.com/v1", c.BaseURL)
	assert.Equal(t, 1323, c.Port)
	assert.Empty(t, c.APIKey)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "macrotune.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gpt-3.5-turbo
poll_interval_seconds: 5
poll_deadline: 2h
training_prefix: chart_
port: 8080
`), 0644))

	t.Setenv("PORT", "9090")
	t.Setenv("MACROTUNE_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", c.Model)
	assert.Equal(t, 5, c.PollIntervalSeconds)
	assert.Equal(t, 2*time.Hour, c.PollDeadline)
	assert.Equal(t, "chart_", c.TrainingPrefix)
	assert.Equal(t, 9090, c.Port, "environment wins over the file")
	assert.Equal(t, 2.5, c.RequestsPerSecond)
	assert.Equal(t, "sk-test", c.APIKey)
	assert.Equal(t, "macros_en", c.SourceDir, "unset keys keep their default")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	chdir(t, t.TempDir())
	c, err := Load("")
	require.NoError(t, err, "the default file is optional")
	assert.Equal(t, Default(), c)
}

func TestLoadBadEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "eighty")

	_, err := Load("")
	assert.ErrorContains(t, err, "PORT")
}

func TestLLM(t *testing.T) {
	c := Default()
	_, err := c.LLM()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c.APIKey = "sk-test"
	c.Organization = "org-1"
	c.BaseURL = "http://localhost:8080/v1"
	config, err := c.LLM()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", config.Host.String())
	assert.Equal(t, "org-1", config.Organization)
	assert.Nil(t, config.Limiter)

	c.RequestsPerSecond = 3
	config, err = c.LLM()
	require.NoError(t, err)
	require.NotNil(t, config.Limiter)
	assert.EqualValues(t, 3, config.Limiter.Limit())
}

func TestFineTune(t *testing.T) {
	c := Default()
	c.PollIntervalSeconds = 15
	c.MaxPollAttempts = 4
	c.PollDeadline = time.Hour

	config := c.FineTune()
	assert.Equal(t, 15*time.Second, config.PollInterval)
	assert.Equal(t, 4, config.MaxAttempts)
	assert.Equal(t, time.Hour, config.Deadline)
	assert.Equal(t, c.TrainingPath, config.TrainingPath)
	assert.Equal(t, c.Model, config.Model)
}

func TestModelName(t *testing.T) {
	c := Default()
	c.ModelOutputPath = filepath.Join(t.TempDir(), "fine_tuned_model.txt")

	_, err := c.ModelName()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(c.ModelOutputPath, []byte("ft:gpt-4:org::x\n"), 0644))
	name, err := c.ModelName()
	require.NoError(t, err)
	assert.Equal(t, "ft:gpt-4:org::x", name)

	c.FineTunedModel = "override"
	name, err = c.ModelName()
	require.NoError(t, err)
	assert.Equal(t, "override", name)
}
