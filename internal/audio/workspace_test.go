package audio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspaceSaveUpload(t *testing.T) {
	ws, err := NewWorkspace("transcribe")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	path, err := ws.SaveUpload(strings.NewReader("fake audio bytes"), "clip.mp3")
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if filepath.Base(path) != "upload.mp3" {
		t.Fatalf("stored as %q, want upload.mp3", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "fake audio bytes" {
		t.Fatalf("content mismatch: %q", data)
	}
}

func TestWorkspaceSaveUploadWithoutExtension(t *testing.T) {
	ws, err := NewWorkspace("align")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	path, err := ws.SaveUpload(strings.NewReader("x"), "noext")
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if filepath.Base(path) != "upload.bin" {
		t.Fatalf("stored as %q, want upload.bin", filepath.Base(path))
	}
}

func TestWorkspaceRejectsEmptyUpload(t *testing.T) {
	ws, err := NewWorkspace("quality")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	_, err = ws.SaveUpload(bytes.NewReader(nil), "empty.wav")
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("err = %v, want ErrEmptyUpload", err)
	}
}

func TestWorkspaceCloseRemovesDirectory(t *testing.T) {
	ws, err := NewWorkspace("synthesize")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if _, err := ws.SaveUpload(strings.NewReader("x"), "ref.wav"); err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatalf("workspace still present after Close: %v", err)
	}

	// Closing twice stays safe.
	if err := ws.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWorkspaceCloseNilSafe(t *testing.T) {
	var ws *Workspace
	if err := ws.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
