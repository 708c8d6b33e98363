// Package health tracks on-disk model availability and serves the cached
// snapshot behind GET /health.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/models"
)

// scorerAvailable reports whether the runner binary exists and is
// executable; the quality scorer ships inside the runner rather than as a
// weights directory.
func scorerAvailable(runnerBin string) bool {
	info, err := os.Stat(runnerBin)
	return err == nil && info.Mode()&0111 != 0
}

// Monitor rescans model weight availability on an interval and serves the
// latest snapshot without touching the filesystem per request.
type Monitor struct {
	modelsDir    string
	runnerBin    string
	modelIDs     []string
	qualityLabel string
	interval     time.Duration

	mu       sync.RWMutex
	snapshot models.HealthResponse

	startOnce sync.Once
}

// NewMonitor constructs a monitor over the named models. modelIDs are the
// weights entries under modelsDir; the quality scorer is reported under
// qualityLabel with availability tied to the runner binary.
func NewMonitor(modelsDir, runnerBin string, modelIDs []string, qualityLabel string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &Monitor{
		modelsDir:    modelsDir,
		runnerBin:    runnerBin,
		modelIDs:     modelIDs,
		qualityLabel: qualityLabel,
		interval:     interval,
	}
	m.refresh()
	return m
}

// Start begins the background rescan loop until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}

// Snapshot returns the most recent health view.
func (m *Monitor) Snapshot() models.HealthResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Refresh forces an immediate rescan, used after model installs and by
// tests.
func (m *Monitor) Refresh() {
	m.refresh()
}

func (m *Monitor) refresh() {
	statuses := make([]models.ModelStatus, 0, len(m.modelIDs)+1)
	allAvailable := true

	for _, id := range m.modelIDs {
		info := backend.Inspect(m.modelsDir, id)
		status := models.ModelStatus{
			Name:      info.Name,
			Available: info.Available,
			Path:      info.Path,
		}
		if info.Available {
			size := info.SizeBytes
			status.SizeBytes = &size
		} else {
			allAvailable = false
		}
		statuses = append(statuses, status)
	}

	scorerOK := scorerAvailable(m.runnerBin)
	statuses = append(statuses, models.ModelStatus{
		Name:      m.qualityLabel,
		Available: scorerOK,
		Path:      m.runnerBin,
	})
	if !scorerOK {
		allAvailable = false
	}

	overall := "ok"
	if !allAvailable {
		overall = "degraded"
	}

	m.mu.Lock()
	m.snapshot = models.HealthResponse{
		Status:    overall,
		Models:    statuses,
		ModelsDir: m.modelsDir,
	}
	m.mu.Unlock()
}
