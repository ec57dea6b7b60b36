package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/zkvote-node/api"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/voting"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	engine     *voting.Engine
	API        *api.API
	mu         sync.Mutex
	cancel     context.CancelFunc
	host       string
	port       int
	adminToken string
	election   string
	scope      *big.Int
	roots      api.RootLister
}

// NewAPI creates a new APIService instance.
func NewAPI(engine *voting.Engine, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		engine: engine,
		host:   host,
		port:   port,
	}
}

// SetAdminToken configures the bearer token of the administrative endpoints.
func (as *APIService) SetAdminToken(token string) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.adminToken = token
}

// SetElection configures the election information served by the info
// endpoint.
func (as *APIService) SetElection(name string, scope *big.Int, roots api.RootLister) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.election = name
	as.scope = scope
	as.roots = roots
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.API, err = api.New(&api.APIConfig{
		Host:       as.host,
		Port:       as.port,
		Engine:     as.engine,
		AdminToken: as.adminToken,
		Election:   as.election,
		Scope:      as.scope,
		Roots:      as.roots,
	})
	if err != nil {
		return fmt.Errorf("failed to create API: %w", err)
	}

	var serveCtx context.Context
	serveCtx, as.cancel = context.WithCancel(ctx)
	if err := as.API.Start(serveCtx); err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
