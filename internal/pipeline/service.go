// Package pipeline drives one speech request from raw upload to structured
// result: validation, workspace handling, audio normalization, admission
// control, memory telemetry, model invocation, and output mapping, with
// exactly one status record per request.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/limits"
	"github.com/podcraft/speech-gateway/internal/memsample"
)

// AudioTools is the external probe/transcode boundary.
type AudioTools interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Normalize(ctx context.Context, inputPath, outputPath string, sampleRate int) error
}

// ModelSource hands out cached model handles plus the identity to report.
type ModelSource interface {
	Recognizer(ctx context.Context) (backend.Recognizer, string, error)
	Aligner(ctx context.Context) (backend.Aligner, string, error)
	Synthesizer(ctx context.Context) (backend.Synthesizer, string, error)
	Scorer(ctx context.Context) (backend.Scorer, string, error)
}

// Gates holds the per-model-kind admission gates.
type Gates struct {
	Recognition *limits.Gate
	Alignment   *limits.Gate
	Synthesis   *limits.Gate
	Quality     *limits.Gate
}

// Metrics receives pipeline measurements. Implementations must tolerate
// concurrent calls; a nil Metrics disables reporting.
type Metrics interface {
	ObserveInference(kind string, seconds float64)
	ObservePeakMemory(gb float64)
	CountClampedWindow()
}

// Options tune a Service beyond its collaborators.
type Options struct {
	// DefaultLanguage seeds recognition prompts when the request has no
	// hint. Empty means no prompt.
	DefaultLanguage string
	// SampleInterval is the memory sampler tick; zero uses the sampler
	// default.
	SampleInterval time.Duration
	// MemoryReader overrides the resident-memory source, nil uses procfs.
	MemoryReader memsample.Reader
}

// Service orchestrates the four speech operations.
type Service struct {
	tools   AudioTools
	source  ModelSource
	gates   Gates
	logger  *slog.Logger
	metrics Metrics
	opts    Options
}

// NewService wires the orchestrator. logger must not be nil in production;
// a nil logger falls back to slog.Default.
func NewService(tools AudioTools, source ModelSource, gates Gates, logger *slog.Logger, metrics Metrics, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tools:   tools,
		source:  source,
		gates:   gates,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

func (s *Service) newSampler() *memsample.Sampler {
	return memsample.New(s.opts.SampleInterval, s.opts.MemoryReader)
}

func (s *Service) observeInference(kind string, seconds float64) {
	if s.metrics != nil {
		s.metrics.ObserveInference(kind, seconds)
	}
}

func (s *Service) observeMemory(sample memsample.Sample) {
	if s.metrics == nil {
		return
	}
	if peak := sample.PeakGB(); peak != nil {
		s.metrics.ObservePeakMemory(*peak)
	}
}

// status accumulates the fields of the one record every request emits.
type status struct {
	step    string
	started time.Time
	fields  []any
}

func newStatus(step string) *status {
	return &status{step: step, started: time.Now()}
}

func (st *status) set(key string, value any) {
	st.fields = append(st.fields, key, value)
}

func (st *status) setMemory(sample memsample.Sample) {
	if peak := sample.PeakGB(); peak != nil {
		st.set("peak_memory_gb", *peak)
	}
	if delta := sample.DeltaGB(); delta != nil {
		st.set("delta_memory_gb", *delta)
	}
}

// emit writes the single status record for a finished request and returns
// the classified error (nil on success).
func (s *Service) emit(st *status, err error) *Error {
	args := []any{
		"step", st.step,
		"duration", time.Since(st.started).Seconds(),
	}
	args = append(args, st.fields...)

	if err == nil {
		args = append(args, "status", "success")
		s.logger.Info("request completed", args...)
		return nil
	}

	pe := classify(err)
	args = append(args,
		"status", "error",
		"error_class", pe.Class.String(),
		"error", pe.Error(),
	)
	if pe.Class == ClassInternal {
		s.logger.Error("request failed", args...)
	} else {
		s.logger.Warn("request failed", args...)
	}
	return pe
}
