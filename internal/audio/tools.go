package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Target sample rates for normalized audio. Recognition, alignment, and
// quality assessment consume 16 kHz; synthesis reference audio keeps 24 kHz
// to preserve voice characteristics for cloning.
const (
	RecognitionSampleRate = 16000
	ReferenceSampleRate   = 24000
)

var (
	// ErrBadInput marks audio the external tools rejected (client fault).
	ErrBadInput = errors.New("invalid audio input")
	// ErrInfrastructure marks a missing binary or a tool that ran but
	// produced no usable output (service fault).
	ErrInfrastructure = errors.New("audio tooling unavailable")
)

// Tools invokes the external probe and transcode binaries. Both are
// executed per call; no state is shared between requests.
type Tools struct {
	FFprobe string
	FFmpeg  string
}

// NewTools returns a Tools using the given binary names or paths; empty
// values fall back to ffprobe/ffmpeg on PATH.
func NewTools(ffprobe, ffmpeg string) *Tools {
	if strings.TrimSpace(ffprobe) == "" {
		ffprobe = "ffprobe"
	}
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	return &Tools{FFprobe: ffprobe, FFmpeg: ffmpeg}
}

// ProbeDuration returns the audio duration in seconds. A missing ffprobe
// binary is an infrastructure error; an unparsable or non-positive duration
// is an input error.
func (t *Tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	stdout, _, err := runTool(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(stdout)
	duration, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: unable to parse audio duration from probe output %q", ErrBadInput, raw)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: invalid audio duration %v", ErrBadInput, duration)
	}
	return duration, nil
}

// Normalize transcodes input to a mono WAV at sampleRate. A non-zero tool
// exit with a diagnostic is an input error; a clean exit that produced no
// output file is an infrastructure error.
func (t *Tools) Normalize(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	_, _, err := runTool(ctx, t.FFmpeg,
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		outputPath,
	)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return fmt.Errorf("%w: transcoder did not produce normalized output", ErrInfrastructure)
	}
	return nil
}

func runTool(ctx context.Context, bin string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", fmt.Errorf("%w: required binary not found: %s", ErrInfrastructure, bin)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = bin + " failed"
			}
			return "", "", fmt.Errorf("%w: %s", ErrBadInput, msg)
		}
		return "", "", fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	return stdout.String(), stderr.String(), nil
}
