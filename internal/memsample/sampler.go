// Package memsample provides low-overhead resident-memory sampling scoped
// to a single inference call.
package memsample

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

const bytesInGigabyte = 1 << 30

// Reader returns the current resident memory of this process in bytes.
type Reader func() (uint64, error)

// ProcReader reads resident memory from /proc via prometheus/procfs.
func ProcReader() (uint64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return 0, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, err
	}
	rss := stat.ResidentMemory()
	if rss < 0 {
		rss = 0
	}
	return uint64(rss), nil
}

// Sample holds the readings collected over one sampler scope. Baseline and
// Peak are nil when not a single reading succeeded.
type Sample struct {
	BaselineBytes *uint64
	PeakBytes     *uint64
}

// PeakGB converts the peak reading to gigabytes, nil when unavailable.
func (s Sample) PeakGB() *float64 {
	if s.PeakBytes == nil {
		return nil
	}
	v := float64(*s.PeakBytes) / bytesInGigabyte
	return &v
}

// DeltaGB is max(0, peak-baseline) in gigabytes, nil when either reading
// is unavailable.
func (s Sample) DeltaGB() *float64 {
	if s.BaselineBytes == nil || s.PeakBytes == nil {
		return nil
	}
	var delta uint64
	if *s.PeakBytes > *s.BaselineBytes {
		delta = *s.PeakBytes - *s.BaselineBytes
	}
	v := float64(delta) / bytesInGigabyte
	return &v
}

// Sampler tracks baseline and peak resident memory for one scope. Start
// takes the baseline and launches a background tick loop; Stop joins the
// loop, folds in a final reading, and returns the collected Sample.
// Individual read failures are skipped, never fatal.
type Sampler struct {
	interval time.Duration
	read     Reader

	mu       sync.Mutex
	baseline *uint64
	peak     *uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a sampler ticking at interval. A non-positive interval falls
// back to 500ms. A nil reader uses ProcReader.
func New(interval time.Duration, read Reader) *Sampler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if read == nil {
		read = ProcReader
	}
	return &Sampler{interval: interval, read: read}
}

// Start records the baseline and begins background sampling. The loop stops
// when Stop is called or ctx is canceled.
func (s *Sampler) Start(ctx context.Context) {
	if v, err := s.read(); err == nil {
		s.mu.Lock()
		s.baseline = &v
		peak := v
		s.peak = &peak
		s.mu.Unlock()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.observe()
			}
		}
	}()
}

// Stop terminates the background loop, takes one final reading, and
// returns the sample.
func (s *Sampler) Stop() Sample {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.observe()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Sample{BaselineBytes: s.baseline, PeakBytes: s.peak}
}

func (s *Sampler) observe() {
	v, err := s.read()
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peak == nil || v > *s.peak {
		s.peak = &v
	}
}
