package api

import (
	"net/http"
)

// transfers returns the audit trail of vote transfers
// GET /transfers
func (a *API) transfers(w http.ResponseWriter, _ *http.Request) {
	list, err := a.engine.Transfers()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &TransfersResponse{Transfers: list})
}

// transferVotes moves votes between two candidates (admin)
// POST /transfers
func (a *API) transferVotes(w http.ResponseWriter, r *http.Request) {
	req := &TransferRequest{}
	if !decodeJSONBody(w, r, req) {
		return
	}
	t, err := a.engine.TransferVotes(r.Context(), req.From, req.To, req.Count)
	if err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, t)
}
