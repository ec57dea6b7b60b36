package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Info endpoint
	InfoEndpoint = "/info" // GET: Get election and ledger information

	// Metrics endpoint
	MetricsEndpoint = "/metrics" // GET: Prometheus metrics

	// Candidate endpoints
	CandidateIDURLParam = "id"                                                  // URL parameter for candidate ID
	CandidatesEndpoint  = "/candidates"                                         // GET: List candidates, POST: Register candidate (admin)
	CandidateEndpoint   = CandidatesEndpoint + "/{" + CandidateIDURLParam + "}" // GET: Get candidate

	// Voter endpoints
	AddressURLParam = "address"                                     // URL parameter for voter address
	VotedQueryParam = "voted"                                       // Query parameter filtering the voters list
	VotersEndpoint  = "/voters"                                     // GET: List voters, POST: Register voter (admin)
	VoterEndpoint   = VotersEndpoint + "/{" + AddressURLParam + "}" // GET: Get voter

	// Nullifier endpoints
	NullifierURLParam = "nullifier"                               // URL parameter for nullifier
	NullifierEndpoint = "/nullifiers/{" + NullifierURLParam + "}" // GET: Check whether a nullifier is spent

	// Vote endpoints
	VotesEndpoint       = "/votes"         // POST: Cast a vote
	VerifyProofEndpoint = "/proofs/verify" // POST: Check a proof without casting a vote

	// Transfer endpoints
	TransfersEndpoint = "/transfers" // GET: List transfers, POST: Transfer votes (admin)
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
	MetricsEndpoint,
	InfoEndpoint,
}
