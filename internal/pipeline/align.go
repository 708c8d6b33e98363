package pipeline

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/podcraft/speech-gateway/internal/audio"
	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/language"
	"github.com/podcraft/speech-gateway/internal/models"
)

// AlignRequest maps a known transcript onto word timestamps.
type AlignRequest struct {
	Upload   io.Reader
	Filename string
	Text     string
	Language string
}

// Align produces word-level timestamps for a transcript over its audio.
func (s *Service) Align(ctx context.Context, req AlignRequest) (*models.AlignResponse, *Error) {
	st := newStatus("align")
	resp, err := s.align(ctx, st, req)
	if pe := s.emit(st, err); pe != nil {
		return nil, pe
	}
	return resp, nil
}

func (s *Service) align(ctx context.Context, st *status, req AlignRequest) (*models.AlignResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, badInput("text is required for alignment")
	}
	hint := strings.TrimSpace(req.Language)
	if hint != "" && !strings.EqualFold(hint, "unknown") && !language.IsSupportedRecognitionHint(hint) {
		return nil, badInput("unsupported language: %s", req.Language)
	}
	st.set("requested_language", hint)

	// Alignment cannot run without a concrete language; a hint that
	// resolves to nothing and no configured default is a deployment
	// problem, not a client one.
	promptLanguage := language.ResolvePromptLanguage(hint, s.opts.DefaultLanguage)
	if promptLanguage == "" {
		return nil, wrap(ClassInternal, nil, "no alignment language available: request carried no hint and no default is configured")
	}
	st.set("prompt_language", promptLanguage)

	prep, err := s.prepareUpload(ctx, "align", req.Upload, req.Filename, audio.RecognitionSampleRate)
	if err != nil {
		return nil, err
	}
	defer prep.ws.Close()
	st.set("audio_duration_seconds", prep.duration)

	aligner, modelID, err := s.source.Aligner(ctx)
	if err != nil {
		return nil, err
	}
	st.set("model_used", modelID)

	if err := s.gates.Alignment.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gates.Alignment.Release()

	sampler := s.newSampler()
	sampler.Start(ctx)
	started := time.Now()
	spans, inferErr := aligner.Align(ctx, prep.normalizedPath, text, promptLanguage)
	inference := time.Since(started).Seconds()
	sample := sampler.Stop()

	st.set("inference_time_seconds", inference)
	st.setMemory(sample)
	s.observeMemory(sample)

	if inferErr != nil {
		return nil, inferErr
	}

	words := make([]models.AlignedWord, 0, len(spans))
	for _, span := range spans {
		if span.Word == "" || span.Start < 0 || span.End < span.Start {
			return nil, wrap(ClassOutput, nil, "alignment model returned an invalid word span")
		}
		words = append(words, models.AlignedWord{
			Word:      span.Word,
			StartTime: span.Start,
			EndTime:   span.End,
		})
	}
	s.observeInference(string(backend.KindAlignment), inference)
	st.set("word_count", len(words))

	return &models.AlignResponse{
		Words:                words,
		InferenceTimeSeconds: inference,
		ModelUsed:            modelID,
	}, nil
}
