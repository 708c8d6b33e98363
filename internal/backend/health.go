package backend

import (
	"os"
	"path/filepath"
	"strings"
)

// weightExtensions are the file types recognized as model weights.
var weightExtensions = map[string]bool{
	".safetensors": true,
	".bin":         true,
	".pt":          true,
	".gguf":        true,
}

// ModelInfo is one model's on-disk availability.
type ModelInfo struct {
	Name      string
	Path      string
	Available bool
	SizeBytes int64
}

// Inspect reports whether the named model's weights are present under
// modelsDir. The model may be a single weight file or a directory holding
// one or more; SizeBytes sums every weight file found.
func Inspect(modelsDir, name string) ModelInfo {
	path := filepath.Join(modelsDir, name)
	info := ModelInfo{Name: name, Path: path}

	st, err := os.Stat(path)
	if err != nil {
		return info
	}

	if !st.IsDir() {
		if isWeightFile(path) {
			info.Available = true
			info.SizeBytes = st.Size()
		}
		return info
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return info
	}
	for _, entry := range entries {
		if entry.IsDir() || !isWeightFile(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		info.Available = true
		info.SizeBytes += fi.Size()
	}
	return info
}

func isWeightFile(name string) bool {
	return weightExtensions[strings.ToLower(filepath.Ext(name))]
}
