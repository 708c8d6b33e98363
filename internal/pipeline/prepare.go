package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/podcraft/speech-gateway/internal/audio"
)

// preparedAudio is the shared front half of every operation: a workspace
// holding the upload and its normalized mono rendition, plus the probed
// source duration.
type preparedAudio struct {
	ws             *audio.Workspace
	normalizedPath string
	duration       float64
}

// prepareUpload persists the upload into a fresh workspace, probes its
// duration, and normalizes it to sampleRate. The caller owns the returned
// workspace and must Close it; on error nothing is returned and the
// workspace is already gone.
func (s *Service) prepareUpload(ctx context.Context, prefix string, upload io.Reader, filename string, sampleRate int) (*preparedAudio, error) {
	ws, err := audio.NewWorkspace(prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	prep, err := s.fillWorkspace(ctx, ws, upload, filename, sampleRate)
	if err != nil {
		ws.Close()
		return nil, err
	}
	return prep, nil
}

func (s *Service) fillWorkspace(ctx context.Context, ws *audio.Workspace, upload io.Reader, filename string, sampleRate int) (*preparedAudio, error) {
	rawPath, err := ws.SaveUpload(upload, filename)
	if err != nil {
		return nil, err
	}

	duration, err := s.tools.ProbeDuration(ctx, rawPath)
	if err != nil {
		return nil, err
	}

	normalizedPath := ws.Path("normalized.wav")
	if err := s.tools.Normalize(ctx, rawPath, normalizedPath, sampleRate); err != nil {
		return nil, err
	}

	return &preparedAudio{ws: ws, normalizedPath: normalizedPath, duration: duration}, nil
}
