// Package client is an HTTP client for the zkvote node API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkvote-node/api"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/util"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts of a request whose connection
	// fails. Only GET requests are retried after the request was sent.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second
	// retryDelay is the pause between two attempts of the same request
	retryDelay = 500 * time.Millisecond
)

// HTTPclient is the zkvote API HTTP client.
type HTTPclient struct {
	c          *http.Client
	host       *url.URL
	retries    int
	adminToken string
}

// New connects to the API host and returns the handle. The host must answer
// the ping endpoint.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// SetAdminToken configures the bearer token sent on every request, required
// by the administrative endpoints.
func (c *HTTPclient) SetAdminToken(token string) {
	c.adminToken = token
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	if n < 1 {
		n = 1
	}
	c.retries = n
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// Request performs a `method` type raw request to the endpoint specified in urlPath parameter.
// Method is either GET or POST. If POST, a JSON struct should be attached.  Returns the response,
// the status code and an error.
//
// Supports query parameters via `params` slice. If the slice is not empty, it should contain pairs of strings;
// the first element of each pair is the key, and the second element is the value.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)

	// Marshal the JSON body if provided.
	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	// Parse the base host URL
	u, err := url.Parse(c.host.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse host URL: %w", err)
	}

	// Join path segments
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	// Expecting even-length slice: [key1, val1, key2, val2, ...]
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}
	if c.adminToken != "" {
		headers.Set("Authorization", "Bearer "+c.adminToken)
	}

	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	var resp *http.Response
	for i := 1; i <= c.retries; i++ {
		// Create a fresh request each attempt
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, reqErr := http.NewRequest(method, u.String(), reqBody)
		if reqErr != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header = headers

		resp, err = c.c.Do(req)
		if err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
		if !retryable(method, err) {
			break
		}
		if i < c.retries {
			time.Sleep(retryDelay + time.Duration(util.RandomInt(0, 250))*time.Millisecond)
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("http request ultimately failed after retries: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// retryable reports whether a failed request can be sent again. GET requests
// are always retried. Other methods are only retried when the connection could
// not be established, since the server may have applied a request whose
// response was lost.
func retryable(method string, err error) bool {
	if method == http.MethodGet {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// call performs a request and decodes the response into out. A non 200
// response is returned as an *APIError.
func (c *HTTPclient) call(method string, body, out any, urlPath ...string) error {
	data, status, err := c.Request(method, body, nil, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &APIError{HTTPStatus: status}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is an error response of the API.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d (code %d): %s", errCodeNot200, e.HTTPStatus, e.Code, e.Message)
}

// IsAPIError reports whether err is an API error response with the code of
// target.
func IsAPIError(err error, target api.Error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == target.Code
}

// Info returns the election information of the node.
func (c *HTTPclient) Info() (*api.InfoResponse, error) {
	info := &api.InfoResponse{}
	return info, c.call(HTTPGET, nil, info, api.InfoEndpoint)
}

// Candidates returns every candidate and the total of votes.
func (c *HTTPclient) Candidates() (*api.CandidatesResponse, error) {
	resp := &api.CandidatesResponse{}
	return resp, c.call(HTTPGET, nil, resp, api.CandidatesEndpoint)
}

// Candidate returns a single candidate.
func (c *HTTPclient) Candidate(id types.CandidateID) (*types.Candidate, error) {
	cand := &types.Candidate{}
	return cand, c.call(HTTPGET, nil, cand,
		api.EndpointWithParam(api.CandidateEndpoint, api.CandidateIDURLParam, id.String()))
}

// Voter returns the registration of a voter.
func (c *HTTPclient) Voter(address common.Address) (*types.Voter, error) {
	v := &types.Voter{}
	return v, c.call(HTTPGET, nil, v,
		api.EndpointWithParam(api.VoterEndpoint, api.AddressURLParam, address.Hex()))
}

// CastVote submits a vote.
func (c *HTTPclient) CastVote(vote *types.Vote) (*api.VoteResponse, error) {
	resp := &api.VoteResponse{}
	return resp, c.call(HTTPPOST, vote, resp, api.VotesEndpoint)
}

// VerifyProof checks a proof without casting a vote.
func (c *HTTPclient) VerifyProof(proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	resp := &api.VerifyProofResponse{}
	err := c.call(HTTPPOST, &api.VerifyProofRequest{Proof: proof, Root: root, Nullifier: nullifier}, resp, api.VerifyProofEndpoint)
	return resp.Valid, err
}

// RegisterCandidate registers a candidate. Requires the admin token.
func (c *HTTPclient) RegisterCandidate(name, affiliation string) (*types.Candidate, error) {
	cand := &types.Candidate{}
	return cand, c.call(HTTPPOST, &api.RegisterCandidateRequest{Name: name, Affiliation: affiliation}, cand, api.CandidatesEndpoint)
}

// RegisterVoter registers a voter. Requires the admin token.
func (c *HTTPclient) RegisterVoter(address common.Address) (*types.Voter, error) {
	v := &types.Voter{}
	return v, c.call(HTTPPOST, &api.RegisterVoterRequest{Address: address}, v, api.VotersEndpoint)
}

// TransferVotes moves votes between two candidates. Requires the admin
// token.
func (c *HTTPclient) TransferVotes(from, to types.CandidateID, count uint64) (*types.Transfer, error) {
	t := &types.Transfer{}
	return t, c.call(HTTPPOST, &api.TransferRequest{From: from, To: to, Count: count}, t, api.TransfersEndpoint)
}

// Voters returns the registered voters.
func (c *HTTPclient) Voters() ([]*types.Voter, error) {
	resp := &api.VotersResponse{}
	if err := c.call(HTTPGET, nil, resp, api.VotersEndpoint); err != nil {
		return nil, err
	}
	return resp.Voters, nil
}

// NullifierSpent reports whether the nullifier already backs a vote.
func (c *HTTPclient) NullifierSpent(nullifier types.Nullifier) (bool, error) {
	resp := &api.NullifierResponse{}
	err := c.call(HTTPGET, nil, resp,
		api.EndpointWithParam(api.NullifierEndpoint, api.NullifierURLParam, nullifier.Hex()))
	return resp.Spent, err
}

// Transfers returns the audit trail of vote transfers.
func (c *HTTPclient) Transfers() ([]*types.Transfer, error) {
	resp := &api.TransfersResponse{}
	if err := c.call(HTTPGET, nil, resp, api.TransfersEndpoint); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}
