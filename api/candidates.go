package api

import (
	"net/http"
)

// candidates returns every candidate with its tally and the total of votes
// GET /candidates
func (a *API) candidates(w http.ResponseWriter, _ *http.Request) {
	list, err := a.engine.ListCandidates()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &CandidatesResponse{Candidates: list}
	for _, c := range list {
		resp.TotalVotes += c.Votes
	}
	httpWriteJSON(w, resp)
}

// candidate returns a single candidate
// GET /candidates/{id}
func (a *API) candidate(w http.ResponseWriter, r *http.Request) {
	id, ok := candidateIDParam(w, r)
	if !ok {
		return
	}
	c, err := a.engine.Candidate(id)
	if err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, c)
}

// registerCandidate registers a new candidate (admin)
// POST /candidates
func (a *API) registerCandidate(w http.ResponseWriter, r *http.Request) {
	req := &RegisterCandidateRequest{}
	if !decodeJSONBody(w, r, req) {
		return
	}
	c, err := a.engine.RegisterCandidate(r.Context(), req.Name, req.Affiliation)
	if err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, c)
}
