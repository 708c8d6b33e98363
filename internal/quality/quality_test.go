package quality

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const testRate = 16000

func waveform(seconds float64) []float32 {
	return make([]float32, int(seconds*testRate))
}

func constantScorer(values ...float64) ScoreFunc {
	return func(ctx context.Context, segment []float32, sampleRate int) ([]float64, error) {
		return append([]float64(nil), values...), nil
	}
}

func TestResolveSettingsDefaults(t *testing.T) {
	s, err := ResolveSettings(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3.0, s.WindowSeconds)
	require.Equal(t, 3.0, s.MinWindowSeconds)
}

func TestResolveSettingsMinDefaultsToWindow(t *testing.T) {
	w := 2.0
	s, err := ResolveSettings(&w, nil)
	require.NoError(t, err)
	require.Equal(t, 2.0, s.MinWindowSeconds)
}

func TestResolveSettingsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		window *float64
		min    *float64
	}{
		{"window below floor", ptr(0.5), nil},
		{"min below floor", ptr(3.0), ptr(0.2)},
		{"min above window", ptr(2.0), ptr(3.0)},
		{"window nan", ptr(math.NaN()), nil},
		{"window inf", ptr(math.Inf(1)), nil},
		{"min nan", ptr(3.0), ptr(math.NaN())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveSettings(tc.window, tc.min)
			require.ErrorIs(t, err, ErrBadSettings)
		})
	}
}

func TestAssessDefaultWindowsOverNineSeconds(t *testing.T) {
	s, err := ResolveSettings(nil, nil)
	require.NoError(t, err)

	res, err := Assess(context.Background(), waveform(9), testRate, s, constantScorer(4, 3, 3, 3, 3), nil)
	require.NoError(t, err)
	require.Len(t, res.Windows, 3)

	bounds := [][2]float64{{0, 3}, {3, 6}, {6, 9}}
	for i, w := range res.Windows {
		require.InDelta(t, bounds[i][0], w.Start, 1e-6)
		require.InDelta(t, bounds[i][1], w.End, 1e-6)
	}
	require.InDelta(t, 4.0, res.AverageMOS, 1e-9)
}

func TestAssessMergesShortTail(t *testing.T) {
	w := 2.0
	s, err := ResolveSettings(&w, nil)
	require.NoError(t, err)

	// Per-window MOS alternates so the weighted mean is observable.
	var call int
	mos := []float64{4, 2}
	score := func(ctx context.Context, segment []float32, rate int) ([]float64, error) {
		m := mos[call]
		call++
		return []float64{m, 3, 3, 3, 3}, nil
	}

	res, err := Assess(context.Background(), waveform(5), testRate, s, score, nil)
	require.NoError(t, err)

	// 5s at W=2 splits [0,2),[2,4),[4,5); the 1s tail merges backwards.
	require.Len(t, res.Windows, 2)
	require.InDelta(t, 2.0, res.Windows[0].End, 1e-6)
	require.InDelta(t, 2.0, res.Windows[1].Start, 1e-6)
	require.InDelta(t, 5.0, res.Windows[1].End, 1e-6)

	want := (4*2.0 + 2*3.0) / 5.0
	require.InDelta(t, want, res.AverageMOS, 1e-9)
}

func TestAssessKeepsTailMeetingMinimum(t *testing.T) {
	w, m := 3.0, 1.0
	s, err := ResolveSettings(&w, &m)
	require.NoError(t, err)

	res, err := Assess(context.Background(), waveform(10), testRate, s, constantScorer(3, 3, 3, 3, 3), nil)
	require.NoError(t, err)
	require.Len(t, res.Windows, 4)
	require.InDelta(t, 9.0, res.Windows[3].Start, 1e-6)
	require.InDelta(t, 10.0, res.Windows[3].End, 1e-6)
}

func TestAssessAcceptsSingleUndersizedWindow(t *testing.T) {
	s, err := ResolveSettings(nil, nil)
	require.NoError(t, err)

	// Whole waveform shorter than the minimum still yields one window.
	res, err := Assess(context.Background(), waveform(1.5), testRate, s, constantScorer(3.5, 3, 3, 3, 3), nil)
	require.NoError(t, err)
	require.Len(t, res.Windows, 1)
	require.InDelta(t, 1.5, res.Windows[0].End, 1e-6)
	require.InDelta(t, 3.5, res.AverageMOS, 1e-9)
}

func TestAssessRejectsWrongScorerArity(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)
	_, err := Assess(context.Background(), waveform(3), testRate, s, constantScorer(4, 3, 3, 3), nil)
	require.ErrorIs(t, err, ErrScorerOutput)
}

func TestAssessRejectsNonFiniteScore(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)
	_, err := Assess(context.Background(), waveform(3), testRate, s, constantScorer(4, math.NaN(), 3, 3, 3), nil)
	require.ErrorIs(t, err, ErrScorerOutput)
}

func TestAssessClampsAndWarns(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)

	var warnings []ClampWarning
	res, err := Assess(context.Background(), waveform(3), testRate, s,
		constantScorer(0.8, 5.8, 2.5, 0.4, 9.0),
		func(w ClampWarning) { warnings = append(warnings, w) })
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	require.Equal(t, []float64{0.8, 5.8, 2.5, 0.4, 9.0}, warnings[0].Raw)
	require.Equal(t, []float64{1.0, 5.0, 2.5, 1.0, 5.0}, warnings[0].Clamped)

	w := res.Windows[0]
	require.Equal(t, 1.0, w.MOS)
	require.Equal(t, 5.0, w.Noisiness)
	require.Equal(t, 2.5, w.Discontinuity)
	require.Equal(t, 1.0, w.Coloration)
	require.Equal(t, 5.0, w.Loudness)
	require.Equal(t, 1.0, res.AverageMOS)
}

func TestAssessNoWarningWhenScoresInRange(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)

	warned := false
	_, err := Assess(context.Background(), waveform(3), testRate, s,
		constantScorer(4.2, 3.1, 2.9, 3.3, 3.0),
		func(ClampWarning) { warned = true })
	require.NoError(t, err)
	require.False(t, warned)
}

func TestAssessEmptyWaveform(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)
	_, err := Assess(context.Background(), nil, testRate, s, constantScorer(3, 3, 3, 3, 3), nil)
	require.ErrorIs(t, err, ErrNoWindows)
}

func TestAssessPropagatesScorerError(t *testing.T) {
	s, _ := ResolveSettings(nil, nil)
	boom := errors.New("runner crashed")
	score := func(ctx context.Context, segment []float32, rate int) ([]float64, error) {
		return nil, boom
	}
	_, err := Assess(context.Background(), waveform(3), testRate, s, score, nil)
	require.ErrorIs(t, err, boom)
}

func TestAssessWindowsCoverWaveform(t *testing.T) {
	durations := []float64{1.2, 3, 4.7, 7, 9.01, 13.5}
	for _, d := range durations {
		w, m := 3.0, 2.0
		s, err := ResolveSettings(&w, &m)
		require.NoError(t, err)

		res, err := Assess(context.Background(), waveform(d), testRate, s, constantScorer(3, 3, 3, 3, 3), nil)
		require.NoError(t, err)

		prev := 0.0
		for _, win := range res.Windows {
			require.InDelta(t, prev, win.Start, 1e-6, "duration %v", d)
			require.Greater(t, win.End, win.Start)
			prev = win.End
		}
		require.InDelta(t, d, prev, 1e-4, "duration %v", d)

		last := res.Windows[len(res.Windows)-1]
		if d >= m {
			require.GreaterOrEqual(t, last.Duration()+1e-6, m, "duration %v", d)
		}
	}
}

func ptr(v float64) *float64 { return &v }
