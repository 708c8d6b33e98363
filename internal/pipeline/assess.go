package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/podcraft/speech-gateway/internal/audio"
	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/models"
	"github.com/podcraft/speech-gateway/internal/quality"
)

// QualityRequest scores uploaded audio over time windows.
type QualityRequest struct {
	Upload           io.Reader
	Filename         string
	WindowSeconds    *float64
	MinWindowSeconds *float64
}

// AssessQuality partitions the upload into windows, scores each through
// the quality model, and reports per-window scores plus a
// duration-weighted average MOS.
func (s *Service) AssessQuality(ctx context.Context, req QualityRequest) (*models.QualityResponse, *Error) {
	st := newStatus("assess_quality")
	resp, err := s.assessQuality(ctx, st, req)
	if pe := s.emit(st, err); pe != nil {
		return nil, pe
	}
	return resp, nil
}

func (s *Service) assessQuality(ctx context.Context, st *status, req QualityRequest) (*models.QualityResponse, error) {
	settings, err := quality.ResolveSettings(req.WindowSeconds, req.MinWindowSeconds)
	if err != nil {
		return nil, err
	}
	st.set("window_seconds", settings.WindowSeconds)
	st.set("min_window_seconds", settings.MinWindowSeconds)

	prep, err := s.prepareUpload(ctx, "quality", req.Upload, req.Filename, audio.RecognitionSampleRate)
	if err != nil {
		return nil, err
	}
	defer prep.ws.Close()
	st.set("audio_duration_seconds", prep.duration)

	samples, rate, err := audio.ReadWAVMono(prep.normalizedPath)
	if err != nil {
		return nil, err
	}

	scorer, label, err := s.source.Scorer(ctx)
	if err != nil {
		return nil, err
	}
	st.set("model_used", label)

	if err := s.gates.Quality.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gates.Quality.Release()

	// Each window goes to the scorer as its own WAV inside the workspace.
	windowIndex := 0
	score := func(ctx context.Context, segment []float32, sampleRate int) ([]float64, error) {
		path := prep.ws.Path(fmt.Sprintf("window_%d.wav", windowIndex))
		windowIndex++
		if err := os.WriteFile(path, audio.EncodeWAV(segment, sampleRate), 0o644); err != nil {
			return nil, fmt.Errorf("write window audio: %w", err)
		}
		return scorer.Score(ctx, path)
	}

	warn := func(w quality.ClampWarning) {
		s.logger.Warn("quality scores clamped",
			"window_start", w.WindowStart,
			"window_end", w.WindowEnd,
			"raw", w.Raw,
			"clamped", w.Clamped,
		)
		if s.metrics != nil {
			s.metrics.CountClampedWindow()
		}
	}

	sampler := s.newSampler()
	sampler.Start(ctx)
	started := time.Now()
	result, assessErr := quality.Assess(ctx, samples, rate, settings, score, warn)
	inference := time.Since(started).Seconds()
	sample := sampler.Stop()

	st.set("inference_time_seconds", inference)
	st.setMemory(sample)
	s.observeMemory(sample)

	if assessErr != nil {
		return nil, assessErr
	}
	s.observeInference(string(backend.KindQuality), inference)

	windows := make([]models.QualityWindow, 0, len(result.Windows))
	for _, w := range result.Windows {
		windows = append(windows, models.QualityWindow{
			WindowStart:   w.Start,
			WindowEnd:     w.End,
			MOS:           w.MOS,
			Noisiness:     w.Noisiness,
			Discontinuity: w.Discontinuity,
			Coloration:    w.Coloration,
			Loudness:      w.Loudness,
		})
	}
	st.set("window_count", len(windows))
	st.set("average_mos", result.AverageMOS)

	return &models.QualityResponse{
		Windows:              windows,
		AverageMOS:           result.AverageMOS,
		InferenceTimeSeconds: inference,
	}, nil
}
