package log_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/log"
)

func TestAudit(t *testing.T) {
	c := qt.New(t)
	output := filepath.Join(t.TempDir(), "audit.json")

	// audit events are written even when only errors are enabled
	log.Init(log.LogLevelError, output, nil)
	defer log.Init(log.LogLevelError, "stderr", nil)

	log.Info("filtered out")
	log.Audit("votes transferred", map[string]any{"from": 1, "to": 2, "count": 3})

	data, err := os.ReadFile(output)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"audit":"votes transferred"`)
	c.Assert(string(data), qt.Contains, `"count":3`)
	c.Assert(string(data), qt.Contains, `"level":"audit"`)
	c.Assert(string(data), qt.Not(qt.Contains), "filtered out")
	c.Assert(log.Level(), qt.Equals, log.LogLevelError)
}

func TestAuditConsoleLevel(t *testing.T) {
	c := qt.New(t)
	output := filepath.Join(t.TempDir(), "audit.log")

	log.Init(log.LogLevelError, output, nil)
	defer log.Init(log.LogLevelError, "stderr", nil)

	log.Audit("votes transferred", map[string]any{"count": 3})

	data, err := os.ReadFile(output)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "AUD")
	c.Assert(string(data), qt.Not(qt.Contains), "???")
	c.Assert(string(data), qt.Contains, "audit=")
}

func TestAuditDoesNotTriggerPanicHook(t *testing.T) {
	c := qt.New(t)
	ch := make(chan string, 1)
	previousLogger := log.EnablePanicOnErrorWithHandler(c.Name(), 50*time.Millisecond, func(msg string) {
		ch <- msg
	})
	defer log.RestoreLogger(previousLogger)

	log.Audit("votes transferred", map[string]any{"count": 1})

	select {
	case got := <-ch:
		c.Fatalf("unexpected panic handler call: %s", got)
	case <-time.After(150 * time.Millisecond):
	}
}
