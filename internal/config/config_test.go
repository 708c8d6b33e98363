package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speechd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
models:
  dir: /srv/models
  runner_bin: /usr/local/bin/speech-runner
  recognition: whisper-large-v3
  alignment: mms-aligner
  synthesis: voice-clone-v1
  quality: nisqa
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(Options{ConfigFile: writeConfig(t, minimalConfig)})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.ListenAddr)
	require.Equal(t, "/srv/models", cfg.Models.Dir)
	require.Equal(t, "nisqa-v2.0", cfg.Models.QualityLabel)
	require.Equal(t, 2, cfg.Inference.RecognitionConcurrency)
	require.Equal(t, 1, cfg.Inference.AlignmentConcurrency)
	require.Equal(t, time.Duration(0), cfg.Inference.QueueTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.Inference.MemorySampleInterval)
	require.Equal(t, 50, cfg.Audio.MaxUploadMB)
	require.Equal(t, "ffmpeg", cfg.Audio.FFmpegBin)
	require.Equal(t, time.Minute, cfg.Health.CheckInterval)
	require.Zero(t, cfg.RateLimits.RequestsPerMinute)
}

func TestLoadMissingModels(t *testing.T) {
	_, err := Load(Options{ConfigFile: writeConfig(t, `
models:
  dir: /srv/models
`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SPEECHD_MODELS_RUNNER_BIN")
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	_, err := Load(Options{ConfigFile: writeConfig(t, minimalConfig + `
inference:
  alignment_concurrency: 0
`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "alignment_concurrency")
}

func TestLoadRateLimitNeedsRedis(t *testing.T) {
	_, err := Load(Options{ConfigFile: writeConfig(t, minimalConfig + `
rate_limits:
  requests_per_minute: 60
`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis.url")
}

func TestLoadRateLimitWithRedis(t *testing.T) {
	cfg, err := Load(Options{ConfigFile: writeConfig(t, minimalConfig + `
rate_limits:
  requests_per_minute: 60
redis:
  url: redis://localhost:6379/0
`)})
	require.NoError(t, err)
	require.Equal(t, 60, cfg.RateLimits.RequestsPerMinute)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SPEECHD_SERVER_LISTEN_ADDR", ":9090")
	t.Setenv("SPEECHD_INFERENCE_QUEUE_TIMEOUT", "30s")

	cfg, err := Load(Options{ConfigFile: writeConfig(t, minimalConfig)})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.Equal(t, 30*time.Second, cfg.Inference.QueueTimeout)
}
