//nolint:lll
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/zkvote-node/voting"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound     = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody        = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrUnauthorized         = Error{Code: 40014, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("unauthorized")}
	ErrMalformedParam       = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedNullifier   = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrMalformedAddress     = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrCandidateNotFound    = Error{Code: 40030, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("candidate not found")}
	ErrVoterNotFound        = Error{Code: 40031, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("voter not found")}
	ErrAlreadyVoted         = Error{Code: 40032, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already voted")}
	ErrDuplicateNullifier   = Error{Code: 40033, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already used")}
	ErrInvalidProof         = Error{Code: 40034, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof")}
	ErrInsufficientVotes    = Error{Code: 40035, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("insufficient votes")}
	ErrDuplicateCandidate   = Error{Code: 40036, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("candidate already registered")}
	ErrDuplicateVoter       = Error{Code: 40037, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already registered")}
	ErrInvalidRequest       = Error{Code: 40038, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid request")}
	ErrMalformedCandidateID = Error{Code: 40039, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed candidate ID")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrCommitFailed               = Error{Code: 50010, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("ledger commit failed")}
	ErrRequestCancelled           = Error{Code: 50011, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("request cancelled")}
)

// votingErrors maps each voting engine error to its API error, in the order
// they are matched.
var votingErrors = []struct {
	err error
	api Error
}{
	{voting.ErrInvalidRequest, ErrInvalidRequest},
	{voting.ErrVoterNotFound, ErrVoterNotFound},
	{voting.ErrAlreadyVoted, ErrAlreadyVoted},
	{voting.ErrDuplicateNullifier, ErrDuplicateNullifier},
	{voting.ErrInvalidProof, ErrInvalidProof},
	{voting.ErrCandidateNotFound, ErrCandidateNotFound},
	{voting.ErrInsufficientVotes, ErrInsufficientVotes},
	{voting.ErrDuplicateCandidate, ErrDuplicateCandidate},
	{voting.ErrDuplicateVoter, ErrDuplicateVoter},
	{voting.ErrCommitFailure, ErrCommitFailed},
	{context.Canceled, ErrRequestCancelled},
	{context.DeadlineExceeded, ErrRequestCancelled},
}

// votingError returns the API error for an error of the voting engine.
func votingError(err error) Error {
	for _, m := range votingErrors {
		if errors.Is(err, m.err) {
			return m.api.WithErr(err)
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}
