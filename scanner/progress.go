package scanner

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker renders a monotonically increasing progress line on
// stdout while a batch runs. Feed its Update method to Options.Progress.
type ProgressTracker struct {
	mu        sync.Mutex
	processed int
	total     int
	ticker    *time.Ticker
	done      chan bool
}

// NewProgressTracker starts the periodic display goroutine.
func NewProgressTracker(total int) *ProgressTracker {
	tracker := &ProgressTracker{
		total:  total,
		ticker: time.NewTicker(500 * time.Millisecond),
		done:   make(chan bool),
	}
	go tracker.displayProgress()
	return tracker
}

// Update records the latest processed/total pair from the pipeline.
func (p *ProgressTracker) Update(processed, total int) {
	p.mu.Lock()
	p.processed = processed
	p.total = total
	p.mu.Unlock()
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			fmt.Printf("\rProgress: %d/%d", p.processed, p.total)
			p.mu.Unlock()
		}
	}
}

// Stop ends the progress display, printing the final count.
func (p *ProgressTracker) Stop() {
	p.ticker.Stop()
	p.done <- true

	p.mu.Lock()
	fmt.Printf("\rProgress: %d/%d\n", p.processed, p.total)
	p.mu.Unlock()
}
