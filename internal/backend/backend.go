// Package backend defines the boundary to the speech model runner: the
// model-kind taxonomy, the per-operation interfaces, and the registry that
// loads and caches one model handle per kind.
package backend

import (
	"context"
	"errors"
)

// Kind names one of the four model roles the service drives.
type Kind string

const (
	KindRecognition Kind = "recognition"
	KindAlignment   Kind = "alignment"
	KindSynthesis   Kind = "synthesis"
	KindQuality     Kind = "quality"
)

var (
	// ErrWeightsMissing reports that a model's weight files are absent
	// from the models directory. Raised before any load attempt.
	ErrWeightsMissing = errors.New("model weights not found")
	// ErrRunnerOutput reports a runner response that could not be decoded
	// or violates the expected shape.
	ErrRunnerOutput = errors.New("model runner returned invalid output")
	// ErrRunnerMissing reports that the runner binary itself is absent or
	// not executable.
	ErrRunnerMissing = errors.New("model runner unavailable")
)

// Transcript is the recognition result for one utterance.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// WordSpan is one word with its time bounds in seconds.
type WordSpan struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpeechSegment is one chunk of generated audio.
type SpeechSegment struct {
	Samples    []float32
	SampleRate int
}

// Recognizer converts speech audio to text.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, languageHint string) (*Transcript, error)
}

// Aligner maps a known transcript onto word-level timestamps.
type Aligner interface {
	Align(ctx context.Context, audioPath, text, language string) ([]WordSpan, error)
}

// Synthesizer generates speech in a reference speaker's voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisInput) ([]SpeechSegment, error)
}

// SynthesisInput carries everything one voice-clone generation needs.
type SynthesisInput struct {
	Text          string
	LangCode      string
	ReferencePath string
	ReferenceText string
	OutputDir     string
}

// Scorer rates one audio segment on five quality dimensions:
// MOS, noisiness, discontinuity, coloration, loudness.
type Scorer interface {
	Score(ctx context.Context, audioPath string) ([]float64, error)
}
