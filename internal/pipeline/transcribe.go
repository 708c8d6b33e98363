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

// TranscribeRequest is one speech-to-text invocation.
type TranscribeRequest struct {
	Upload   io.Reader
	Filename string
	Language string
}

// Transcribe converts uploaded speech to text.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*models.TranscribeResponse, *Error) {
	st := newStatus("transcribe")
	resp, err := s.transcribe(ctx, st, req)
	if pe := s.emit(st, err); pe != nil {
		return nil, pe
	}
	return resp, nil
}

func (s *Service) transcribe(ctx context.Context, st *status, req TranscribeRequest) (*models.TranscribeResponse, error) {
	hint := strings.TrimSpace(req.Language)
	if hint != "" && !strings.EqualFold(hint, "unknown") && !language.IsSupportedRecognitionHint(hint) {
		return nil, badInput("unsupported language: %s", req.Language)
	}
	st.set("requested_language", hint)

	prep, err := s.prepareUpload(ctx, "transcribe", req.Upload, req.Filename, audio.RecognitionSampleRate)
	if err != nil {
		return nil, err
	}
	defer prep.ws.Close()
	st.set("audio_duration_seconds", prep.duration)

	recognizer, modelID, err := s.source.Recognizer(ctx)
	if err != nil {
		return nil, err
	}
	st.set("model_used", modelID)

	promptLanguage := language.ResolvePromptLanguage(hint, s.opts.DefaultLanguage)
	st.set("prompt_language", promptLanguage)

	if err := s.gates.Recognition.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gates.Recognition.Release()

	sampler := s.newSampler()
	sampler.Start(ctx)
	started := time.Now()
	transcript, inferErr := recognizer.Transcribe(ctx, prep.normalizedPath, promptLanguage)
	inference := time.Since(started).Seconds()
	sample := sampler.Stop()

	st.set("inference_time_seconds", inference)
	st.setMemory(sample)
	s.observeMemory(sample)

	if inferErr != nil {
		return nil, inferErr
	}
	if transcript == nil {
		return nil, wrap(ClassOutput, nil, "recognition model returned no transcript")
	}
	s.observeInference(string(backend.KindRecognition), inference)

	// Detected language first, then the caller's hint, then unknown.
	lang := language.NormalizeResponseLanguage(transcript.Language)
	if lang == "" {
		lang = language.NormalizeResponseLanguage(hint)
	}
	if lang == "" {
		lang = "unknown"
	}
	st.set("detected_language", lang)

	return &models.TranscribeResponse{
		Text:                 transcript.Text,
		Language:             lang,
		InferenceTimeSeconds: inference,
		AudioDurationSeconds: prep.duration,
		ModelUsed:            modelID,
	}, nil
}
