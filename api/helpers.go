package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
)

// maxRequestBodySize is the largest request body accepted by the handlers.
const maxRequestBodySize = 1 << 20

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeJSONBody decodes the request body into out. It writes the error
// response and returns false if the body is not valid JSON for out.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return false
	}
	return true
}

// candidateIDParam parses the candidate ID URL parameter.
func candidateIDParam(w http.ResponseWriter, r *http.Request) (types.CandidateID, bool) {
	id, err := types.ParseCandidateID(chi.URLParam(r, CandidateIDURLParam))
	if err != nil {
		ErrMalformedCandidateID.WithErr(err).Write(w)
		return 0, false
	}
	return id, true
}

// addressParam parses the voter address URL parameter.
func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	s := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(s) {
		ErrMalformedAddress.Withf("%q", s).Write(w)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// nullifierParam parses the nullifier URL parameter, 32 bytes hex encoded.
func nullifierParam(w http.ResponseWriter, r *http.Request) (types.Nullifier, bool) {
	s := chi.URLParam(r, NullifierURLParam)
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		ErrMalformedNullifier.Withf("%q", s).Write(w)
		return types.Nullifier{}, false
	}
	return common.BytesToHash(b), true
}
