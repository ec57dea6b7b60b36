package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/api"
	"github.com/vocdoni/zkvote-node/db/metadb"
	"github.com/vocdoni/zkvote-node/storage"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
	"github.com/vocdoni/zkvote-node/voting"
)

func TestAPIService(t *testing.T) {
	c := qt.New(t)
	engine, err := voting.New(storage.New(metadb.NewTest(t)), verifier.Func(
		func(context.Context, []byte, types.CensusRoot, types.Nullifier) (bool, error) { return false, nil }))
	c.Assert(err, qt.IsNil)

	as := NewAPI(engine, "127.0.0.1", 0, true)
	as.SetAdminToken("token")
	c.Assert(as.Start(context.Background()), qt.IsNil)
	c.Assert(as.Start(context.Background()), qt.ErrorMatches, "service already running")

	url := "http://" + as.API.Addr().String() + api.PingEndpoint
	resp, err := http.Get(url)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)

	as.Stop()
	// the listener closes shortly after the stop
	c.Assert(func() bool {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			resp, err := http.Get(url)
			if err != nil {
				return true
			}
			_ = resp.Body.Close()
			time.Sleep(50 * time.Millisecond)
		}
		return false
	}(), qt.IsTrue)
}
