package service

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/voting"
)

type staticStats struct {
	stats *voting.Stats
	err   error
}

func (s staticStats) Stats() (*voting.Stats, error) { return s.stats, s.err }

func TestStatsMonitor(t *testing.T) {
	c := qt.New(t)
	sm := NewStatsMonitor(staticStats{stats: &voting.Stats{Candidates: 2, TotalVotes: 5, SpentNullifiers: 5}}, 10*time.Millisecond)
	reports := make(chan map[string]any, 16)
	sm.report = func(msg string, fields map[string]any) {
		c.Check(msg, qt.Equals, "ledger stats")
		select {
		case reports <- fields:
		default:
		}
	}

	c.Assert(sm.Start(context.Background()), qt.IsNil)
	c.Assert(sm.Start(context.Background()), qt.ErrorMatches, "service already running")

	select {
	case fields := <-reports:
		c.Assert(fields, qt.DeepEquals, map[string]any{
			"candidates":      2,
			"totalVotes":      uint64(5),
			"spentNullifiers": 5,
		})
	case <-time.After(5 * time.Second):
		c.Fatal("no stats reported")
	}
	sm.Stop()
	sm.Stop()

	// restartable after a stop
	c.Assert(sm.Start(context.Background()), qt.IsNil)
	sm.Stop()
}

func TestStatsMonitorErrors(t *testing.T) {
	c := qt.New(t)
	c.Assert(NewStatsMonitor(staticStats{}, 0).Start(context.Background()), qt.ErrorMatches, "invalid stats interval.*")

	sm := NewStatsMonitor(staticStats{err: errors.New("closed")}, 5*time.Millisecond)
	sm.report = func(string, map[string]any) { c.Error("stats reported on a read error") }
	c.Assert(sm.Start(context.Background()), qt.IsNil)
	time.Sleep(30 * time.Millisecond)
	sm.Stop()
}
