package api

import (
	"net/http"

	"github.com/vocdoni/zkvote-node/types"
)

// info returns the election served by the node and a summary of the ledger
// GET /info
func (a *API) info(w http.ResponseWriter, _ *http.Request) {
	stats, err := a.engine.Stats()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &InfoResponse{
		Election: a.election,
		Roots:    []types.CensusRoot{},
		Stats:    *stats,
	}
	if a.scope != nil {
		resp.Scope = a.scope.String()
	}
	if a.roots != nil {
		resp.Roots = a.roots.Roots()
	}
	httpWriteJSON(w, resp)
}
