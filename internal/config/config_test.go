package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ModeImmediate, cfg.ProcessMode)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, 300, cfg.OCRDPI)
	require.Equal(t, 30*time.Second, cfg.SnapshotInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROCESS_MODE", "async")
	t.Setenv("PORT", "9000")
	t.Setenv("OCR_PREFER_TEXT_LAYER", "true")
	t.Setenv("ALLOW_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("WORKERS", "4")

	cfg := Load()
	require.Equal(t, ModeAsync, cfg.ProcessMode)
	require.Equal(t, 9000, cfg.Port)
	require.True(t, cfg.PreferTextLayer)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowOrigins)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	require.Equal(t, 8000, Load().Port)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Load()
	cfg.ProcessMode = "batch"
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.ScanDir = ""
	require.Error(t, cfg.Validate())
}

func TestBucketDirs(t *testing.T) {
	cfg := Load()
	dirs := cfg.BucketDirs()
	require.Equal(t, cfg.FullyIndexedDir, dirs.FullyIndexed)
	require.Equal(t, cfg.PartiallyIndexedDir, dirs.PartiallyIndexed)
	require.Equal(t, cfg.FailedDir, dirs.Failed)
}
