package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/metrics"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/voting"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
	shutdownTimeout   = 10 * time.Second
)

// RootLister returns the census roots accepted by the node.
type RootLister interface {
	Roots() []types.CensusRoot
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host   string
	Port   int
	Engine *voting.Engine
	// AdminToken is the bearer token required by the administrative
	// endpoints. If empty, the administrative endpoints are not registered.
	AdminToken string
	// Optional election information served by the info endpoint.
	Election string
	Scope    *big.Int
	Roots    RootLister
}

// API type represents the API HTTP server.
type API struct {
	router     *chi.Mux
	engine     *voting.Engine
	adminToken string
	election   string
	scope      *big.Int
	roots      RootLister
	host       string
	port       int
	listener   net.Listener
}

// New creates a new API instance with the given configuration and registers
// every handler. The server is not started until Start is called.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Engine == nil {
		return nil, fmt.Errorf("missing voting engine")
	}
	a := &API{
		engine:     conf.Engine,
		adminToken: conf.AdminToken,
		election:   conf.Election,
		scope:      conf.Scope,
		roots:      conf.Roots,
		host:       conf.Host,
		port:       conf.Port,
	}
	a.initRouter()
	return a, nil
}

// Start listens on the configured host and port and serves the API until
// ctx is cancelled.
func (a *API) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(a.host, fmt.Sprint(a.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	a.listener = ln
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("failed to shutdown API server", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil if it was not
// started.
func (a *API) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Withf("%s %s", r.Method, r.URL.Path).Write(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.info)
	log.Infow("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Method(http.MethodGet, MetricsEndpoint, metrics.Handler())
	// candidates endpoints
	log.Infow("register handler", "endpoint", CandidatesEndpoint, "method", "GET")
	a.router.Get(CandidatesEndpoint, a.candidates)
	log.Infow("register handler", "endpoint", CandidateEndpoint, "method", "GET")
	a.router.Get(CandidateEndpoint, a.candidate)
	// voters endpoints
	log.Infow("register handler", "endpoint", VotersEndpoint, "method", "GET")
	a.router.Get(VotersEndpoint, a.voters)
	log.Infow("register handler", "endpoint", VoterEndpoint, "method", "GET")
	a.router.Get(VoterEndpoint, a.voter)
	// votes endpoints
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", VerifyProofEndpoint, "method", "POST")
	a.router.Post(VerifyProofEndpoint, a.verifyProof)
	// nullifiers endpoints
	log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
	a.router.Get(NullifierEndpoint, a.nullifier)
	// transfers endpoints
	log.Infow("register handler", "endpoint", TransfersEndpoint, "method", "GET")
	a.router.Get(TransfersEndpoint, a.transfers)

	// administrative endpoints
	if a.adminToken == "" {
		log.Warnw("no admin token configured, administrative endpoints disabled")
		return
	}
	a.router.Group(func(r chi.Router) {
		r.Use(adminAuthMiddleware(a.adminToken))
		log.Infow("register handler", "endpoint", CandidatesEndpoint, "method", "POST", "admin", true)
		r.Post(CandidatesEndpoint, a.registerCandidate)
		log.Infow("register handler", "endpoint", VotersEndpoint, "method", "POST", "admin", true)
		r.Post(VotersEndpoint, a.registerVoter)
		log.Infow("register handler", "endpoint", TransfersEndpoint, "method", "POST", "admin", true)
		r.Post(TransfersEndpoint, a.transferVotes)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
