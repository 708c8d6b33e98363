// Package quality implements the audio quality windowing engine: it
// partitions a waveform into fixed-size windows, merges undersized tails,
// drives a scorer call per window, and aggregates a duration-weighted
// overall score.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultWindowSeconds is the window size used when the request does
	// not supply one.
	DefaultWindowSeconds = 3.0
	// MinWindowFloor is the lowest accepted value for either window
	// parameter.
	MinWindowFloor = 1.0

	scoreCount = 5
)

var (
	// ErrBadSettings marks window parameters outside the accepted range.
	ErrBadSettings = errors.New("invalid window settings")
	// ErrScorerOutput marks a scorer response with the wrong arity or a
	// non-finite value.
	ErrScorerOutput = errors.New("scorer produced invalid output")
	// ErrNoWindows marks a waveform that partitioned into nothing, which
	// the upstream upload checks should make impossible.
	ErrNoWindows = errors.New("waveform produced no windows")
)

// Settings are the resolved windowing parameters for one request.
type Settings struct {
	WindowSeconds    float64
	MinWindowSeconds float64
}

// ResolveSettings validates the optional request parameters and fills in
// defaults: window 3.0s, min equal to window, both floored at 1.0 and min
// never above window.
func ResolveSettings(windowSeconds, minWindowSeconds *float64) (Settings, error) {
	window := DefaultWindowSeconds
	if windowSeconds != nil {
		window = *windowSeconds
	}
	if math.IsNaN(window) || math.IsInf(window, 0) {
		return Settings{}, fmt.Errorf("%w: window_seconds must be finite", ErrBadSettings)
	}
	if window < MinWindowFloor {
		return Settings{}, fmt.Errorf("%w: window_seconds must be at least %.1f", ErrBadSettings, MinWindowFloor)
	}

	min := window
	if minWindowSeconds != nil {
		min = *minWindowSeconds
	}
	if math.IsNaN(min) || math.IsInf(min, 0) {
		return Settings{}, fmt.Errorf("%w: min_window_seconds must be finite", ErrBadSettings)
	}
	if min < MinWindowFloor {
		return Settings{}, fmt.Errorf("%w: min_window_seconds must be at least %.1f", ErrBadSettings, MinWindowFloor)
	}
	if min > window {
		return Settings{}, fmt.Errorf("%w: min_window_seconds %.3f exceeds window_seconds %.3f", ErrBadSettings, min, window)
	}
	return Settings{WindowSeconds: window, MinWindowSeconds: min}, nil
}

// ScoreFunc scores one audio segment and returns exactly five dimensions:
// overall quality (MOS), noisiness, discontinuity, coloration, loudness.
type ScoreFunc func(ctx context.Context, segment []float32, sampleRate int) ([]float64, error)

// ClampWarning describes a window whose raw scores fell outside [1,5].
type ClampWarning struct {
	WindowStart float64
	WindowEnd   float64
	Raw         []float64
	Clamped     []float64
}

// WarnFunc receives clamp warnings. May be nil.
type WarnFunc func(ClampWarning)

// Window is one scored time slice, half-open [Start, End), scores already
// clamped to [1,5].
type Window struct {
	Start         float64
	End           float64
	MOS           float64
	Noisiness     float64
	Discontinuity float64
	Coloration    float64
	Loudness      float64
}

// Duration returns End minus Start in seconds.
func (w Window) Duration() float64 { return w.End - w.Start }

// Result is the outcome of assessing one waveform.
type Result struct {
	Windows    []Window
	AverageMOS float64
}

// Assess partitions the waveform per settings, scores every window, and
// returns the windows with a duration-weighted average MOS. The windows
// cover the full waveform contiguously; the last window is at least
// MinWindowSeconds long unless the whole waveform is shorter than that.
func Assess(ctx context.Context, samples []float32, sampleRate int, settings Settings, score ScoreFunc, warn WarnFunc) (Result, error) {
	if sampleRate <= 0 {
		return Result{}, fmt.Errorf("%w: sample rate %d", ErrNoWindows, sampleRate)
	}

	segments := partition(samples, sampleRate, settings.WindowSeconds)
	if len(segments) == 0 {
		return Result{}, ErrNoWindows
	}
	segments = mergeTail(segments, sampleRate, settings.MinWindowSeconds)

	windows := make([]Window, 0, len(segments))
	offset := 0
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		start := float64(offset) / float64(sampleRate)
		end := float64(offset+len(seg)) / float64(sampleRate)
		offset += len(seg)

		scores, err := score(ctx, seg, sampleRate)
		if err != nil {
			return Result{}, err
		}
		clamped, err := clampScores(start, end, scores, warn)
		if err != nil {
			return Result{}, err
		}

		windows = append(windows, Window{
			Start:         start,
			End:           end,
			MOS:           clamped[0],
			Noisiness:     clamped[1],
			Discontinuity: clamped[2],
			Coloration:    clamped[3],
			Loudness:      clamped[4],
		})
	}

	average, err := weightedAverageMOS(windows)
	if err != nil {
		return Result{}, err
	}
	return Result{Windows: windows, AverageMOS: average}, nil
}

// partition slices the waveform into chunks of windowSeconds; the final
// chunk keeps whatever remains.
func partition(samples []float32, sampleRate int, windowSeconds float64) [][]float32 {
	step := int(windowSeconds * float64(sampleRate))
	if step <= 0 || len(samples) == 0 {
		return nil
	}
	var segments [][]float32
	for start := 0; start < len(samples); start += step {
		end := start + step
		if end > len(samples) {
			end = len(samples)
		}
		segments = append(segments, samples[start:end])
	}
	return segments
}

// mergeTail folds an undersized final segment into its predecessor until
// the tail meets minSeconds or a single segment remains.
func mergeTail(segments [][]float32, sampleRate int, minSeconds float64) [][]float32 {
	minSamples := minSeconds * float64(sampleRate)
	for len(segments) >= 2 && float64(len(segments[len(segments)-1])) < minSamples {
		last := segments[len(segments)-1]
		prev := segments[len(segments)-2]
		merged := make([]float32, 0, len(prev)+len(last))
		merged = append(merged, prev...)
		merged = append(merged, last...)
		segments = append(segments[:len(segments)-2], merged)
	}
	return segments
}

func clampScores(start, end float64, raw []float64, warn WarnFunc) ([]float64, error) {
	if len(raw) != scoreCount {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrScorerOutput, scoreCount, len(raw))
	}
	clamped := make([]float64, scoreCount)
	adjusted := false
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value at position %d", ErrScorerOutput, i)
		}
		c := v
		if c < 1 {
			c = 1
		} else if c > 5 {
			c = 5
		}
		if c != v {
			adjusted = true
		}
		clamped[i] = c
	}
	if adjusted && warn != nil {
		warn(ClampWarning{
			WindowStart: start,
			WindowEnd:   end,
			Raw:         append([]float64(nil), raw...),
			Clamped:     append([]float64(nil), clamped...),
		})
	}
	return clamped, nil
}

func weightedAverageMOS(windows []Window) (float64, error) {
	var total, weighted float64
	for _, w := range windows {
		d := w.Duration()
		if d <= 0 {
			return 0, fmt.Errorf("window [%.3f, %.3f) has non-positive duration", w.Start, w.End)
		}
		total += d
		weighted += w.MOS * d
	}
	if total <= 0 {
		return 0, errors.New("total window duration is zero")
	}
	return weighted / total, nil
}
