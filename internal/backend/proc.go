package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/podcraft/speech-gateway/internal/audio"
)

// Runner wraps the external model runner binary. Each inference is one
// subprocess invocation with JSON on stdout; model weights are passed by
// path so the runner owns all ML state.
type Runner struct {
	bin string
}

// NewRunner validates that the runner binary exists and is executable.
func NewRunner(bin string) (*Runner, error) {
	info, err := os.Stat(bin)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("model runner not found: %s", bin)
	}
	if err != nil {
		return nil, fmt.Errorf("stat model runner: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return nil, fmt.Errorf("model runner is not executable: %s (mode %s)", bin, info.Mode())
	}
	return &Runner{bin: bin}, nil
}

func (r *Runner) run(ctx context.Context, out any, args ...string) error {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return fmt.Errorf("runner %s failed: %s", args[0], diag)
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("%w: %v", ErrRunnerOutput, err)
	}
	return nil
}

// procRecognizer binds the runner to one recognition model.
type procRecognizer struct {
	runner    *Runner
	modelPath string
}

func (p *procRecognizer) Transcribe(ctx context.Context, audioPath, languageHint string) (*Transcript, error) {
	args := []string{"transcribe",
		"--model", p.modelPath,
		"--audio", audioPath,
		"--format", "json",
	}
	if languageHint != "" {
		args = append(args, "--language", languageHint)
	}

	var out Transcript
	if err := p.runner.run(ctx, &out, args...); err != nil {
		return nil, err
	}
	return &out, nil
}

// procAligner binds the runner to one alignment model.
type procAligner struct {
	runner    *Runner
	modelPath string
}

func (p *procAligner) Align(ctx context.Context, audioPath, text, language string) ([]WordSpan, error) {
	var out struct {
		Words []WordSpan `json:"words"`
	}
	err := p.runner.run(ctx, &out, "align",
		"--model", p.modelPath,
		"--audio", audioPath,
		"--text", text,
		"--language", language,
		"--format", "json",
	)
	if err != nil {
		return nil, err
	}
	return out.Words, nil
}

// procSynthesizer binds the runner to one synthesis model. The runner
// writes generated WAV segments into the request workspace and reports
// their paths; decoding happens on this side.
type procSynthesizer struct {
	runner    *Runner
	modelPath string
}

func (p *procSynthesizer) Synthesize(ctx context.Context, req SynthesisInput) ([]SpeechSegment, error) {
	var out struct {
		Segments []struct {
			Path string `json:"path"`
		} `json:"segments"`
	}
	err := p.runner.run(ctx, &out, "synthesize",
		"--model", p.modelPath,
		"--text", req.Text,
		"--language", req.LangCode,
		"--reference-audio", req.ReferencePath,
		"--reference-text", req.ReferenceText,
		"--out-dir", req.OutputDir,
		"--format", "json",
	)
	if err != nil {
		return nil, err
	}

	segments := make([]SpeechSegment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		path := seg.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(req.OutputDir, path)
		}
		samples, rate, err := audio.ReadWAVMono(path)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s: %v", ErrRunnerOutput, seg.Path, err)
		}
		segments = append(segments, SpeechSegment{Samples: samples, SampleRate: rate})
	}
	return segments, nil
}

// procScorer binds the runner to one quality model.
type procScorer struct {
	runner    *Runner
	modelPath string
}

func (p *procScorer) Score(ctx context.Context, audioPath string) ([]float64, error) {
	var out struct {
		Scores []float64 `json:"scores"`
	}
	err := p.runner.run(ctx, &out, "score",
		"--model", p.modelPath,
		"--audio", audioPath,
		"--format", "json",
	)
	if err != nil {
		return nil, err
	}
	return out.Scores, nil
}
