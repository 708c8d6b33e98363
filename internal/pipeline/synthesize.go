package pipeline

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/podcraft/speech-gateway/internal/audio"
	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/language"
)

const (
	maxSynthesisTextChars = 5000
	minReferenceSeconds   = 3.0
)

// SynthesizeRequest is one voice-clone generation.
type SynthesizeRequest struct {
	Text              string
	ReferenceAudio    io.Reader
	ReferenceFilename string
	ReferenceText     string
	Language          string
}

// SynthesizeResult carries the generated WAV plus the header metadata the
// HTTP layer reports alongside it.
type SynthesizeResult struct {
	WAV                  []byte
	InferenceTimeSeconds float64
	AudioDurationSeconds float64
	ModelUsed            string
	PeakMemoryGB         *float64
	DeltaMemoryGB        *float64
}

// Synthesize generates speech for text in the reference speaker's voice.
func (s *Service) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, *Error) {
	st := newStatus("synthesize")
	resp, err := s.synthesize(ctx, st, req)
	if pe := s.emit(st, err); pe != nil {
		return nil, pe
	}
	return resp, nil
}

func (s *Service) synthesize(ctx context.Context, st *status, req SynthesizeRequest) (*SynthesizeResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, badInput("text is required")
	}
	if n := utf8.RuneCountInString(text); n > maxSynthesisTextChars {
		return nil, badInput("text is too long: %d characters, limit is %d", n, maxSynthesisTextChars)
	}
	st.set("text_length", utf8.RuneCountInString(text))

	langCode, err := language.ResolveSynthesisLangCode(req.Language)
	if err != nil {
		return nil, badInput("%s", err.Error())
	}
	st.set("requested_language", strings.TrimSpace(req.Language))
	st.set("lang_code", langCode)

	prep, err := s.prepareUpload(ctx, "synthesize", req.ReferenceAudio, req.ReferenceFilename, audio.ReferenceSampleRate)
	if err != nil {
		return nil, err
	}
	defer prep.ws.Close()
	st.set("reference_duration_seconds", prep.duration)

	if prep.duration < minReferenceSeconds {
		return nil, badInput("reference audio is too short: %.2fs, need at least %.1fs", prep.duration, minReferenceSeconds)
	}

	referenceText, err := s.resolveReferenceText(ctx, prep, req.ReferenceText, langCode)
	if err != nil {
		return nil, err
	}

	synthesizer, modelID, err := s.source.Synthesizer(ctx)
	if err != nil {
		return nil, err
	}
	st.set("model_used", modelID)

	if err := s.gates.Synthesis.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gates.Synthesis.Release()

	sampler := s.newSampler()
	sampler.Start(ctx)
	started := time.Now()
	segments, inferErr := synthesizer.Synthesize(ctx, backend.SynthesisInput{
		Text:          text,
		LangCode:      langCode,
		ReferencePath: prep.normalizedPath,
		ReferenceText: referenceText,
		OutputDir:     prep.ws.Dir(),
	})
	inference := time.Since(started).Seconds()
	sample := sampler.Stop()

	st.set("inference_time_seconds", inference)
	st.setMemory(sample)
	s.observeMemory(sample)

	if inferErr != nil {
		return nil, inferErr
	}
	if len(segments) == 0 {
		return nil, wrap(ClassOutput, nil, "synthesis model returned no audio")
	}
	s.observeInference(string(backend.KindSynthesis), inference)

	// All segments join into one waveform; the first segment's rate wins.
	rate := segments[0].SampleRate
	if rate <= 0 {
		return nil, wrap(ClassOutput, nil, "synthesis model reported an invalid sample rate")
	}
	var combined []float32
	for _, seg := range segments {
		combined = append(combined, seg.Samples...)
	}
	if len(combined) == 0 {
		return nil, wrap(ClassOutput, nil, "synthesis model returned empty audio segments")
	}

	generated := float64(len(combined)) / float64(rate)
	st.set("generated_audio_duration_seconds", generated)

	return &SynthesizeResult{
		WAV:                  audio.EncodeWAV(combined, rate),
		InferenceTimeSeconds: inference,
		AudioDurationSeconds: generated,
		ModelUsed:            modelID,
		PeakMemoryGB:         sample.PeakGB(),
		DeltaMemoryGB:        sample.DeltaGB(),
	}, nil
}

// resolveReferenceText returns the caller's reference transcript or, when
// blank, transcribes the reference audio through the recognition model
// under the recognition gate.
func (s *Service) resolveReferenceText(ctx context.Context, prep *preparedAudio, explicit, langCode string) (string, error) {
	text := strings.TrimSpace(explicit)
	source := "explicit"

	if text == "" {
		source = "auto_asr"

		asrPath := prep.ws.Path("reference_asr.wav")
		if err := s.tools.Normalize(ctx, prep.normalizedPath, asrPath, audio.RecognitionSampleRate); err != nil {
			return "", err
		}

		recognizer, _, err := s.source.Recognizer(ctx)
		if err != nil {
			return "", err
		}
		if err := s.gates.Recognition.Acquire(ctx); err != nil {
			return "", err
		}
		transcript, err := recognizer.Transcribe(ctx, asrPath, "")
		s.gates.Recognition.Release()
		if err != nil {
			return "", err
		}
		if transcript == nil || strings.TrimSpace(transcript.Text) == "" {
			return "", wrap(ClassOutput, nil, "reference transcription returned no text")
		}
		text = strings.TrimSpace(transcript.Text)
	}

	s.logger.Info("reference_text_resolved",
		"source", source,
		"char_count", utf8.RuneCountInString(text),
		"word_count", len(strings.Fields(text)),
		"reference_duration_seconds", prep.duration,
		"lang_code", langCode,
	)
	return text, nil
}
