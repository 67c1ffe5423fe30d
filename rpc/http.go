package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"sharebook/audit"
	"sharebook/native/registrar"
	"sharebook/native/registry"
	"sharebook/observability/metrics"
	"sharebook/storage"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codePreconditionFailed = -32050
	codeNotFound           = -32051
	codeLifecycleClosed    = -32052
)

// Server exposes the controller's operations and the ledger's queries over a
// token-authenticated JSON-RPC endpoint. Every mutation persists fresh
// snapshots before the response leaves, so an acknowledged change survives a
// crash.
type Server struct {
	controller *registrar.Controller
	ledger     *registry.Ledger
	journal    *audit.Journal
	snapshots  *storage.SnapshotStore
	metrics    *metrics.RegistryMetrics
	logger     *slog.Logger
	authToken  string

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	ratePerSec rate.Limit
	burst      int
}

// Options configures a Server.
type Options struct {
	Controller *registrar.Controller
	// Ledger is the read handle retained by the daemon; it stays usable for
	// queries after the controller closes and drops its own handle.
	Ledger    *registry.Ledger
	Journal   *audit.Journal
	Snapshots *storage.SnapshotStore
	Logger    *slog.Logger
	AuthToken string
	// RatePerMin limits mutating calls per client address. Zero disables
	// limiting (tests).
	RatePerMin float64
	Burst      int
}

func NewServer(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, errors.New("rpc: controller not configured")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		controller: opts.Controller,
		ledger:     opts.Ledger,
		journal:    opts.Journal,
		snapshots:  opts.Snapshots,
		metrics:    metrics.Registry(),
		logger:     logger,
		authToken:  strings.TrimSpace(opts.AuthToken),
		limiters:   make(map[string]*rate.Limiter),
		ratePerSec: rate.Limit(opts.RatePerMin / 60.0),
		burst:      burst,
	}, nil
}

// setLedger records the read handle once the controller deploys its ledger.
func (s *Server) setLedger(ledger *registry.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = ledger
}

func (s *Server) readLedger() *registry.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

// Router mounts the RPC endpoint plus the health and metrics surfaces.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Serve blocks, serving the router on addr.
func (s *Server) Serve(addr string) error {
	s.logger.Info("serving JSON-RPC", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, nil, codeInvalidRequest, "unable to read request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, codeParseError, "invalid JSON-RPC request")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\" with a method")
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, req.ID, codeMethodNotFound, "unknown method "+req.Method)
		return
	}
	if handler.mutating {
		if !s.authorized(r) {
			writeError(w, req.ID, codeUnauthorized, "missing or invalid bearer token")
			return
		}
		if !s.allow(clientID(r)) {
			writeError(w, req.ID, codeRateLimited, "too many requests")
			return
		}
	}

	result, rpcErr := handler.fn(req.Params)
	if handler.mutating {
		s.metrics.ObserveOperation(req.Method, errFromRPC(rpcErr))
		if rpcErr == nil {
			s.afterMutation(req.Method)
		}
	}
	if rpcErr != nil {
		writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	writeResult(w, req.ID, result)
}

// afterMutation persists snapshots and refreshes the gauges once a mutation
// succeeded.
func (s *Server) afterMutation(method string) {
	ledger := s.readLedger()
	if ledger == nil {
		if fresh := s.controller.Ledger(); fresh != nil {
			s.setLedger(fresh)
			ledger = fresh
		}
	}
	if s.snapshots != nil {
		if ledger != nil {
			if err := s.snapshots.SaveLedger(ledger.Snapshot()); err != nil {
				s.logger.Error("persist ledger snapshot", "method", method, "err", err)
			}
		}
		if err := s.snapshots.SaveController(s.controller.Snapshot()); err != nil {
			s.logger.Error("persist controller snapshot", "method", method, "err", err)
		}
	}
	if ledger != nil {
		s.metrics.SetHolderCount(ledger.HolderCount())
		s.metrics.SetTotalSupply(ledger.TotalSupply())
	}
	if s.journal != nil {
		s.metrics.SetJournalSize(s.journal.Len())
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

func (s *Server) allow(client string) bool {
	if s.ratePerSec <= 0 {
		return true
	}
	s.mu.Lock()
	limiter, ok := s.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(s.ratePerSec, s.burst)
		s.limiters[client] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

// errFromRPC converts a handler error back into a plain error for metrics.
func errFromRPC(e *rpcError) error {
	if e == nil {
		return nil
	}
	return errors.New(e.Message)
}

// domainError maps the register's error taxonomy onto stable JSON-RPC codes
// so orchestrators can branch on kind without parsing messages.
func domainError(err error) *rpcError {
	code := codeServerError
	switch {
	case errors.Is(err, registry.ErrUnauthorized), errors.Is(err, registrar.ErrNotOwner):
		code = codeUnauthorized
	case errors.Is(err, registry.ErrInvalidAddress),
		errors.Is(err, registry.ErrInvalidFingerprint),
		errors.Is(err, registry.ErrInvalidAmount),
		errors.Is(err, registrar.ErrInvalidArgument):
		code = codeInvalidParams
	case errors.Is(err, registry.ErrLedgerClosed),
		errors.Is(err, registrar.ErrControllerClosed),
		errors.Is(err, registrar.ErrAlreadyMigrated),
		errors.Is(err, registrar.ErrAlreadyDeployed),
		errors.Is(err, registrar.ErrNotDeployed):
		code = codeLifecycleClosed
	case errors.Is(err, registry.ErrIndexOutOfRange):
		code = codeNotFound
	case errors.Is(err, registry.ErrNotVerified),
		errors.Is(err, registry.ErrAlreadyVerified),
		errors.Is(err, registry.ErrAddressCancelled),
		errors.Is(err, registry.ErrInsufficientBalance),
		errors.Is(err, registry.ErrInsufficientAllowance),
		errors.Is(err, registry.ErrAddressLocked),
		errors.Is(err, registry.ErrLedgerFrozen),
		errors.Is(err, registry.ErrNotShareholder),
		errors.Is(err, registry.ErrShareholderExists):
		code = codePreconditionFailed
	}
	return &rpcError{Code: code, Message: err.Error()}
}

func invalidParams(err error) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: err.Error()}
}
