package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		BaseURL: "http://127.0.0.1:8080",
		DataDir: tmp,
		Path:    filepath.Join(tmp, "config.json"),
	}

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.Equal(t, DefaultControlAddr, cfg.ControlAddr)
}

func TestConfig_Validate_EmptyFillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultConfigPath, cfg.Path)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	tmp := t.TempDir()

	t.Run("bad scheme", func(t *testing.T) {
		cfg := &Config{
			BaseURL: "ftp://bad.example.com",
			DataDir: tmp,
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "base url")
	})

	t.Run("not a url", func(t *testing.T) {
		cfg := &Config{
			BaseURL: "://bad",
			DataDir: tmp,
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_SaveAndLoad_Roundtrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.json")

	cfg := &Config{
		BaseURL:      "http://127.0.0.1:8080",
		AccessToken:  "tok",
		DataDir:      tmp,
		ControlAddr:  "localhost:7438",
		ControlToken: "ctok",
		Path:         path,
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save())

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
	assert.Equal(t, cfg.AccessToken, loaded.AccessToken)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, cfg.ControlToken, loaded.ControlToken)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_LoadRejectsGarbage(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
