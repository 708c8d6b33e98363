// Package audio owns request-scoped audio storage, the external probe and
// transcode tools, and WAV decoding/encoding for the speech pipeline.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyUpload marks a zero-byte upload, reported as a client fault.
var ErrEmptyUpload = errors.New("uploaded file is empty")

// Workspace is an exclusively owned, request-scoped directory holding the
// raw upload and any derived audio files. It is never shared across
// requests and is removed with all contents on Close.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh workspace directory for one request. The
// prefix names the operation (e.g. "transcribe") for easier debugging of
// leftover directories.
func NewWorkspace(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("speechd-%s-%s-", prefix, uuid.NewString()[:8]))
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace root.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// SaveUpload streams an upload into the workspace as "upload<ext>" and
// returns the destination path. The original filename only contributes its
// extension; an upload without one is stored as upload.bin. A zero-byte
// body yields ErrEmptyUpload.
func (w *Workspace) SaveUpload(body io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		ext = ".bin"
	}
	dest := w.Path("upload" + ext)

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("persist upload: %w", err)
	}
	if written == 0 {
		return "", ErrEmptyUpload
	}
	return dest, nil
}

// Close removes the workspace directory and everything in it. Safe to call
// on every exit path.
func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	return os.RemoveAll(w.dir)
}
