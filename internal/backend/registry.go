package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// Config names the models the registry serves and where their weights
// live.
type Config struct {
	ModelsDir     string
	RecognitionID string
	AlignmentID   string
	SynthesisID   string
	QualityID     string
	QualityLabel  string
}

// Loaders build model handles once their weights have been verified.
// Production wiring uses the subprocess runner; tests inject fakes.
type Loaders struct {
	Recognition func(ctx context.Context, modelPath string) (Recognizer, error)
	Alignment   func(ctx context.Context, modelPath string) (Aligner, error)
	Synthesis   func(ctx context.Context, modelPath string) (Synthesizer, error)
	Quality     func(ctx context.Context, modelPath string) (Scorer, error)
}

// BinLoaders binds every kind to the subprocess runner at bin. The binary
// is validated on each load attempt, so installing it later does not
// require a restart.
func BinLoaders(bin string) Loaders {
	get := func() (*Runner, error) {
		runner, err := NewRunner(bin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRunnerMissing, err)
		}
		return runner, nil
	}
	return Loaders{
		Recognition: func(_ context.Context, path string) (Recognizer, error) {
			runner, err := get()
			if err != nil {
				return nil, err
			}
			return &procRecognizer{runner: runner, modelPath: path}, nil
		},
		Alignment: func(_ context.Context, path string) (Aligner, error) {
			runner, err := get()
			if err != nil {
				return nil, err
			}
			return &procAligner{runner: runner, modelPath: path}, nil
		},
		Synthesis: func(_ context.Context, path string) (Synthesizer, error) {
			runner, err := get()
			if err != nil {
				return nil, err
			}
			return &procSynthesizer{runner: runner, modelPath: path}, nil
		},
		Quality: func(_ context.Context, path string) (Scorer, error) {
			runner, err := get()
			if err != nil {
				return nil, err
			}
			return &procScorer{runner: runner, modelPath: path}, nil
		},
	}
}

type slot[T any] struct {
	mu     sync.RWMutex
	loaded bool
	handle T
}

// Registry lazily loads and caches one model handle per kind. A load
// happens at most once per slot until Reset; concurrent callers of the
// same kind serialize on the slot, different kinds never block each other.
type Registry struct {
	cfg     Config
	loaders Loaders
	logger  *slog.Logger

	recognition slot[Recognizer]
	alignment   slot[Aligner]
	synthesis   slot[Synthesizer]
	quality     slot[Scorer]
}

// NewRegistry builds a registry over the given loaders.
func NewRegistry(cfg Config, loaders Loaders, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, loaders: loaders, logger: logger}
}

// Recognizer returns the cached recognition model, loading it on first
// use. The second return is the configured model ID for reporting.
func (r *Registry) Recognizer(ctx context.Context) (Recognizer, string, error) {
	h, err := getOrLoad(ctx, r, &r.recognition, KindRecognition, r.cfg.RecognitionID, r.loaders.Recognition)
	return h, r.cfg.RecognitionID, err
}

// Aligner returns the cached alignment model, loading it on first use.
func (r *Registry) Aligner(ctx context.Context) (Aligner, string, error) {
	h, err := getOrLoad(ctx, r, &r.alignment, KindAlignment, r.cfg.AlignmentID, r.loaders.Alignment)
	return h, r.cfg.AlignmentID, err
}

// Synthesizer returns the cached synthesis model, loading it on first use.
func (r *Registry) Synthesizer(ctx context.Context) (Synthesizer, string, error) {
	h, err := getOrLoad(ctx, r, &r.synthesis, KindSynthesis, r.cfg.SynthesisID, r.loaders.Synthesis)
	return h, r.cfg.SynthesisID, err
}

// Scorer returns the cached quality model, loading it on first use. The
// reported label is the scorer's versioned name rather than a weights
// directory.
func (r *Registry) Scorer(ctx context.Context) (Scorer, string, error) {
	label := r.cfg.QualityLabel
	if label == "" {
		label = r.cfg.QualityID
	}
	h, err := getOrLoad(ctx, r, &r.quality, KindQuality, r.cfg.QualityID, r.loaders.Quality)
	return h, label, err
}

// Reset drops every cached handle so the next request reloads. Used by
// tests and shutdown.
func (r *Registry) Reset() {
	resetSlot(&r.recognition)
	resetSlot(&r.alignment)
	resetSlot(&r.synthesis)
	resetSlot(&r.quality)
}

func resetSlot[T any](s *slot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	var zero T
	s.handle = zero
}

func getOrLoad[T any](ctx context.Context, r *Registry, s *slot[T], kind Kind, modelID string, load func(context.Context, string) (T, error)) (T, error) {
	s.mu.RLock()
	if s.loaded {
		h := s.handle
		s.mu.RUnlock()
		return h, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.handle, nil
	}

	var zero T
	if load == nil {
		return zero, fmt.Errorf("no loader configured for %s model", kind)
	}

	info := Inspect(r.cfg.ModelsDir, modelID)
	if !info.Available {
		return zero, fmt.Errorf("%w: %s model %q under %s", ErrWeightsMissing, kind, modelID, r.cfg.ModelsDir)
	}

	path := filepath.Join(r.cfg.ModelsDir, modelID)
	r.logger.Info("loading model", "kind", string(kind), "model", modelID, "path", path)
	h, err := load(ctx, path)
	if err != nil {
		r.logger.Error("model load failed", "kind", string(kind), "model", modelID, "error", err)
		return zero, fmt.Errorf("load %s model %q: %w", kind, modelID, err)
	}
	r.logger.Info("model loaded", "kind", string(kind), "model", modelID)

	s.handle = h
	s.loaded = true
	return h, nil
}
