package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "test")

		conf, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.Equal(t, "http://localhost:8000/api", conf.API.BaseURL)
		assert.Equal(t, 300*time.Millisecond, conf.Search.Debounce)
		assert.Equal(t, int64(5<<20), conf.Staging.MaxImageBytes)
		assert.Equal(t, 40_000_000, conf.Staging.MaxImagePixels)
		assert.False(t, conf.NotifyDecisions)
		from := conf.DefaultFromEmail()
		assert.Equal(t, "Showcase <noreply@localhost>", from.String())
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("ENV", "QA")
		t.Setenv("QA_APIBASEURL", "https://qa.example.com/api/")
		t.Setenv("QA_SEARCHDEBOUNCE", "1s")
		t.Setenv("QA_DEBUG", "false")
		t.Setenv("QA_DEFAULTFROMEMAIL", "Reviews <reviews@example.com>")

		conf, err := NewConfig()
		require.NoError(t, err)
		assert.False(t, conf.TestMode)
		assert.False(t, conf.Debug)
		assert.Equal(t, "https://qa.example.com/api", conf.API.BaseURL)
		assert.Equal(t, time.Second, conf.Search.Debounce)
		assert.Equal(t, "reviews@example.com", conf.DefaultFromEmail().Address)
		assert.Equal(t, "Reviews", conf.DefaultFromEmail().Name)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config", ".env.prod"), []byte("PROD_APITOKEN=secret\n"), 0o600))

		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() {
			_ = os.Chdir(wd)
			_ = os.Unsetenv("PROD_APITOKEN")
		})
		t.Setenv("ENV", "PROD")

		conf, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "secret", conf.API.Token)
	})
}
