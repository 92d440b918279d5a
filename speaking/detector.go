// Package speaking turns sampled audio levels into a speaking indicator.
package speaking

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source exposes the current audio level in [0, 1].
type Source interface {
	Level() float64
}

// Detector samples a Source on a fixed interval and reports transitions of
// the speaking indicator. Only changes are reported; a steady level stays
// silent. A muted participant is never speaking regardless of level.
type Detector struct {
	config   Config
	source   Source
	onChange func(bool)
	muted    atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDetector creates a detector. onChange is invoked from the sampling
// goroutine whenever the indicator flips.
func NewDetector(config Config, source Source, onChange func(bool)) *Detector {
	return &Detector{
		config:   config,
		source:   source,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sampling loop until Stop.
func (d *Detector) Start() {
	go d.run()
}

// SetMuted gates the indicator. Muting while speaking reports the transition
// to silent on the next sample.
func (d *Detector) SetMuted(muted bool) {
	d.muted.Store(muted)
}

// Stop ends the sampling loop and waits for it to exit. If the indicator is
// up it is reported down first, so no listener is left showing a stale state.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		<-d.done
	})
}

func (d *Detector) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	speaking := false
	for {
		select {
		case <-d.stop:
			if speaking {
				d.onChange(false)
			}
			return
		case <-ticker.C:
			now := !d.muted.Load() && d.source.Level() >= d.config.Threshold
			if now == speaking {
				continue
			}
			speaking = now
			d.onChange(speaking)
		}
	}
}
