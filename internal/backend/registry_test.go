package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct{}

func (fakeRecognizer) Transcribe(context.Context, string, string) (*Transcript, error) {
	return &Transcript{Text: "hello"}, nil
}

func writeWeights(t *testing.T, modelsDir, model string) {
	t.Helper()
	dir := filepath.Join(modelsDir, model)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.safetensors"), []byte("weights"), 0o644))
}

func TestRegistryLoadsOnceAcrossConcurrentCallers(t *testing.T) {
	modelsDir := t.TempDir()
	writeWeights(t, modelsDir, "asr-large")

	var loads int64
	reg := NewRegistry(Config{ModelsDir: modelsDir, RecognitionID: "asr-large"}, Loaders{
		Recognition: func(context.Context, string) (Recognizer, error) {
			atomic.AddInt64(&loads, 1)
			return fakeRecognizer{}, nil
		},
	}, nil)

	errs := make(chan error, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := reg.Recognizer(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, atomic.LoadInt64(&loads))
}

func TestRegistryMissingWeights(t *testing.T) {
	reg := NewRegistry(Config{ModelsDir: t.TempDir(), RecognitionID: "ghost"}, Loaders{
		Recognition: func(context.Context, string) (Recognizer, error) {
			t.Fatal("loader must not run when weights are absent")
			return nil, nil
		},
	}, nil)

	_, _, err := reg.Recognizer(context.Background())
	require.ErrorIs(t, err, ErrWeightsMissing)
}

func TestRegistryLoadErrorIsNotCached(t *testing.T) {
	modelsDir := t.TempDir()
	writeWeights(t, modelsDir, "asr")

	var loads int64
	reg := NewRegistry(Config{ModelsDir: modelsDir, RecognitionID: "asr"}, Loaders{
		Recognition: func(context.Context, string) (Recognizer, error) {
			if atomic.AddInt64(&loads, 1) == 1 {
				return nil, errors.New("out of memory")
			}
			return fakeRecognizer{}, nil
		},
	}, nil)

	_, _, err := reg.Recognizer(context.Background())
	require.Error(t, err)

	_, _, err = reg.Recognizer(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt64(&loads))
}

func TestRegistryResetForcesReload(t *testing.T) {
	modelsDir := t.TempDir()
	writeWeights(t, modelsDir, "asr")

	var loads int64
	reg := NewRegistry(Config{ModelsDir: modelsDir, RecognitionID: "asr"}, Loaders{
		Recognition: func(context.Context, string) (Recognizer, error) {
			atomic.AddInt64(&loads, 1)
			return fakeRecognizer{}, nil
		},
	}, nil)

	_, _, err := reg.Recognizer(context.Background())
	require.NoError(t, err)
	reg.Reset()
	_, _, err = reg.Recognizer(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt64(&loads))
}

func TestRegistryScorerLabel(t *testing.T) {
	modelsDir := t.TempDir()
	writeWeights(t, modelsDir, "nisqa")

	reg := NewRegistry(Config{
		ModelsDir:    modelsDir,
		QualityID:    "nisqa",
		QualityLabel: "nisqa-v2.0",
	}, Loaders{
		Quality: func(context.Context, string) (Scorer, error) {
			return scorerFunc(func(context.Context, string) ([]float64, error) {
				return []float64{3, 3, 3, 3, 3}, nil
			}), nil
		},
	}, nil)

	_, label, err := reg.Scorer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "nisqa-v2.0", label)
}

type scorerFunc func(context.Context, string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, path string) ([]float64, error) { return f(ctx, path) }
