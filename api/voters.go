package api

import (
	"net/http"
	"strconv"

	"github.com/vocdoni/zkvote-node/types"
)

// voters lists the registered voters, optionally filtered by whether they
// already voted
// GET /voters?voted=true|false
func (a *API) voters(w http.ResponseWriter, r *http.Request) {
	var filter *bool
	if s := r.URL.Query().Get(VotedQueryParam); s != "" {
		voted, err := strconv.ParseBool(s)
		if err != nil {
			ErrMalformedParam.Withf("%s=%q", VotedQueryParam, s).Write(w)
			return
		}
		filter = &voted
	}
	list, err := a.engine.ListVoters()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &VotersResponse{Voters: []*types.Voter{}}
	for _, v := range list {
		if filter == nil || v.HasVoted == *filter {
			resp.Voters = append(resp.Voters, v)
		}
	}
	httpWriteJSON(w, resp)
}

// voter returns the registration of a voter
// GET /voters/{address}
func (a *API) voter(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	v, err := a.engine.Voter(address)
	if err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}

// registerVoter makes an address eligible to vote (admin)
// POST /voters
func (a *API) registerVoter(w http.ResponseWriter, r *http.Request) {
	req := &RegisterVoterRequest{}
	if !decodeJSONBody(w, r, req) {
		return
	}
	if err := a.engine.RegisterVoter(r.Context(), req.Address); err != nil {
		votingError(err).Write(w)
		return
	}
	v, err := a.engine.Voter(req.Address)
	if err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}
