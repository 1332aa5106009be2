package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hyunwoo-ko/vaultlend/pkg/lending"
)

// Server exposes the lending engine over REST and streams ledger events over
// WebSocket. It implements lending.EventSink so the engine can push events
// straight into the hub.
type Server struct {
	log    *zap.Logger
	engine *lending.Engine
	store  *lending.Store
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server
func NewServer(log *zap.Logger, engine *lending.Engine, store *lending.Store) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:    log,
		engine: engine,
		store:  store,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Read-only views
	api.HandleFunc("/positions/{address}", s.handleGetPosition).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Operation submission
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/borrow", s.handleBorrow).Methods("POST")
	api.HandleFunc("/repay", s.handleRepay).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/accrue", s.handleAccrue).Methods("POST")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Publish implements lending.EventSink: every engine event goes out on the
// WebSocket stream as it happens.
func (s *Server) Publish(evt lending.Event) {
	s.hub.Broadcast(eventInfo(evt))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	view := s.engine.GetUserView(addr)
	respondJSON(w, PositionInfo{
		Address:           addr.Hex(),
		Collateral:        view.Collateral.String(),
		Principal:         view.Principal.String(),
		ProjectedInterest: view.ProjectedInterest.String(),
		TotalDebt:         view.TotalDebt.String(),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.GetProtocolStats()
	respondJSON(w, StatsInfo{
		TotalCollateral:    stats.TotalCollateral.String(),
		TotalLoans:         stats.TotalLoans.String(),
		AvailableLiquidity: stats.AvailableLiquidity.String(),
	})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	events, err := s.store.RecentEvents(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "event query failed", err.Error())
		return
	}

	out := make([]EventInfo, len(events))
	for i, evt := range events {
		out[i] = eventInfo(evt)
	}
	respondJSON(w, out)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	addr, amount, ok := parseOpRequest(w, r, true)
	if !ok {
		return
	}
	s.runOp(w, "deposit", func() error {
		return s.engine.DepositCollateral(addr, amount)
	})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	addr, amount, ok := parseOpRequest(w, r, true)
	if !ok {
		return
	}
	s.runOp(w, "borrow", func() error {
		return s.engine.Borrow(addr, amount)
	})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	addr, _, ok := parseOpRequest(w, r, false)
	if !ok {
		return
	}
	s.runOp(w, "repay", func() error {
		return s.engine.Repay(addr)
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	addr, _, ok := parseOpRequest(w, r, false)
	if !ok {
		return
	}
	s.runOp(w, "withdraw", func() error {
		return s.engine.WithdrawCollateral(addr)
	})
}

func (s *Server) handleAccrue(w http.ResponseWriter, r *http.Request) {
	addr, _, ok := parseOpRequest(w, r, false)
	if !ok {
		return
	}
	s.runOp(w, "accrue", func() error {
		return s.engine.AccrueInterest(addr)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// runOp executes an engine operation and maps its error to an HTTP response.
func (s *Server) runOp(w http.ResponseWriter, name string, op func() error) {
	if err := op(); err != nil {
		s.log.Info("op rejected", zap.String("op", name), zap.Error(err))
		respondError(w, statusFor(err), errorKind(err), err.Error())
		return
	}
	respondJSON(w, OpResponse{Status: "ok"})
}

// ==============================
// Helper Functions
// ==============================

func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseOpRequest(w http.ResponseWriter, r *http.Request, needAmount bool) (common.Address, *big.Int, bool) {
	var req OpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return common.Address{}, nil, false
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return common.Address{}, nil, false
	}
	if !needAmount {
		return addr, nil, true
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", req.Amount)
		return common.Address{}, nil, false
	}
	return addr, amount, true
}

func eventInfo(evt lending.Event) EventInfo {
	info := EventInfo{
		Seq:       evt.Seq,
		Type:      string(evt.Type),
		Account:   evt.Account.Hex(),
		Timestamp: evt.Timestamp,
	}
	if evt.Amount != nil {
		info.Amount = evt.Amount.String()
	}
	if evt.Principal != nil {
		info.Principal = evt.Principal.String()
	}
	if evt.Interest != nil {
		info.Interest = evt.Interest.String()
	}
	return info
}

// errorKind strips wrapping context and returns the stable error kind string.
func errorKind(err error) string {
	for _, kind := range []error{
		lending.ErrInvalidAmount,
		lending.ErrCollateralizationExceeded,
		lending.ErrInsufficientLiquidity,
		lending.ErrNoOutstandingDebt,
		lending.ErrOutstandingDebt,
		lending.ErrNoCollateral,
		lending.ErrUnauthorized,
		lending.ErrAssetTransferFailed,
		lending.ErrReentrancy,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "lending: operation failed"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrReentrancy):
		return http.StatusConflict
	case errors.Is(err, lending.ErrUnderflow):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
