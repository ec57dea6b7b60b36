package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/voting"
)

// StatsProvider returns a summary of the ledger.
type StatsProvider interface {
	Stats() (*voting.Stats, error)
}

// StatsMonitor is a service that periodically logs the ledger statistics.
type StatsMonitor struct {
	ledger   StatsProvider
	interval time.Duration
	report   func(msg string, fields map[string]any)
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStatsMonitor creates a new StatsMonitor reporting every interval.
func NewStatsMonitor(ledger StatsProvider, interval time.Duration) *StatsMonitor {
	return &StatsMonitor{
		ledger:   ledger,
		interval: interval,
		report:   log.Monitor,
	}
}

// Start begins reporting. It returns an error if the service is already
// running or the interval is not positive.
func (sm *StatsMonitor) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if sm.interval <= 0 {
		return fmt.Errorf("invalid stats interval %s", sm.interval)
	}

	ctx, sm.cancel = context.WithCancel(ctx)
	sm.done = make(chan struct{})
	go sm.run(ctx, sm.done)
	return nil
}

func (sm *StatsMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.reportStats()
		}
	}
}

func (sm *StatsMonitor) reportStats() {
	stats, err := sm.ledger.Stats()
	if err != nil {
		log.Warnw("cannot read ledger stats", "error", err.Error())
		return
	}
	sm.report("ledger stats", map[string]any{
		"candidates":      stats.Candidates,
		"totalVotes":      stats.TotalVotes,
		"spentNullifiers": stats.SpentNullifiers,
	})
}

// Stop halts the monitor and waits for the reporting loop to exit.
func (sm *StatsMonitor) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		sm.cancel()
		<-sm.done
		sm.cancel = nil
	}
}
