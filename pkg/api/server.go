package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tricodex/darkpool/pkg/ledger"
	"github.com/tricodex/darkpool/pkg/settlement"
	"github.com/tricodex/darkpool/pkg/token"
)

// Server exposes the settlement contract surface over HTTP: order
// submission, restricted accessors, the privileged match entrypoint, and
// the authority rotation paths. Failed calls carry their failure kind as
// a reason string so the off-chain matcher can branch on it.
type Server struct {
	book    *ledger.Ledger
	engine  *settlement.Engine
	tokens  *token.Registry
	router  *mux.Router
	hub     *Hub
	metrics *Metrics
}

// NewServer creates the API server and wires the event hub into the
// ledger and engine.
func NewServer(book *ledger.Ledger, engine *settlement.Engine, tokens *token.Registry) *Server {
	s := &Server{
		book:    book,
		engine:  engine,
		tokens:  tokens,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		metrics: NewMetrics(prometheus.DefaultRegisterer),
	}

	book.SetEvents(s.hub)
	engine.SetEvents(s.hub)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order ledger
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/payload", s.handleGetPayload).Methods("GET")
	api.HandleFunc("/orders/{id}/owner", s.handleGetOwner).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/accounts/{address}/orders", s.handleGetOrders).Methods("GET")

	// Settlement
	api.HandleFunc("/matches", s.handleExecuteMatch).Methods("POST")
	api.HandleFunc("/authority", s.handleAuthorityUpdate).Methods("POST")
	api.HandleFunc("/privacy-access", s.handlePrivacyAccess).Methods("POST")

	// Introspection
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Operational endpoints
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if !common.IsHexAddress(req.Owner) {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid owner address")
		return
	}
	payload, err := hexutil.Decode(req.Payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "payload must be 0x-prefixed hex")
		return
	}

	id, err := s.book.Submit(common.HexToAddress(req.Owner), payload)
	if err != nil {
		s.respondKind(w, err)
		return
	}

	s.metrics.OrdersSubmitted.Inc()
	respondJSON(w, SubmitOrderResponse{OrderID: id})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	info := OrderStatusInfo{OrderID: id, Exists: s.book.Exists(id)}
	if !info.Exists {
		info.Status = "unknown"
		respondJSON(w, info)
		return
	}

	filled, err := s.book.IsFilled(id)
	if err != nil {
		s.respondKind(w, err)
		return
	}
	cancelled, err := s.book.IsCancelled(id)
	if err != nil {
		s.respondKind(w, err)
		return
	}

	info.Filled = filled
	info.Cancelled = cancelled
	switch {
	case filled:
		info.Status = "filled"
	case cancelled:
		info.Status = "cancelled"
	default:
		info.Status = "open"
	}
	respondJSON(w, info)
}

func (s *Server) handleGetPayload(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	caller, ok := callerParam(w, r)
	if !ok {
		return
	}

	payload, err := s.book.PayloadOf(id, caller)
	if err != nil {
		s.respondKind(w, err)
		return
	}
	respondJSON(w, PayloadInfo{OrderID: id, Payload: hexutil.Encode(payload)})
}

func (s *Server) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	caller, ok := callerParam(w, r)
	if !ok {
		return
	}

	owner, err := s.book.OwnerOf(id, caller)
	if err != nil {
		s.respondKind(w, err)
		return
	}
	respondJSON(w, OwnerInfo{OrderID: id, Owner: owner.Hex()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid caller address")
		return
	}

	if err := s.book.Cancel(id, common.HexToAddress(req.Caller)); err != nil {
		s.respondKind(w, err)
		return
	}

	s.metrics.OrdersCancelled.Inc()
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid address")
		return
	}
	caller, ok := callerParam(w, r)
	if !ok {
		return
	}

	owner := common.HexToAddress(addressStr)
	ids := s.book.OrdersOf(owner, caller)
	if ids == nil {
		ids = []uint64{}
	}
	respondJSON(w, OrdersInfo{Owner: owner.Hex(), OrderIDs: ids})
}

func (s *Server) handleExecuteMatch(w http.ResponseWriter, r *http.Request) {
	var req ExecuteMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	for _, a := range []string{req.Caller, req.Buyer, req.Seller, req.Token} {
		if !common.IsHexAddress(a) {
			respondError(w, http.StatusBadRequest, "BadRequest", "invalid address in match parameters")
			return
		}
	}

	err := s.engine.ExecuteMatch(common.HexToAddress(req.Caller), settlement.MatchParams{
		BuyOrderID:  req.BuyOrderID,
		SellOrderID: req.SellOrderID,
		Buyer:       common.HexToAddress(req.Buyer),
		Seller:      common.HexToAddress(req.Seller),
		Token:       common.HexToAddress(req.Token),
		Amount:      req.Amount,
		Price:       req.Price,
	})
	if err != nil {
		s.metrics.MatchFailures.WithLabelValues(reasonFor(err)).Inc()
		s.respondKind(w, err)
		return
	}

	s.metrics.MatchesExecuted.Inc()
	respondJSON(w, map[string]string{"status": "matched"})
}

func (s *Server) handleAuthorityUpdate(w http.ResponseWriter, r *http.Request) {
	var req AuthorityUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.NewMatcher) {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid address")
		return
	}

	var update settlement.Update
	switch req.Path {
	case "admin":
		update = settlement.AdminUpdate{NewMatcher: common.HexToAddress(req.NewMatcher)}
	case "attested":
		proof, err := hexutil.Decode(req.Proof)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BadRequest", "proof must be 0x-prefixed hex")
			return
		}
		update = settlement.AttestedSelfUpdate{
			NewMatcher: common.HexToAddress(req.NewMatcher),
			Proof:      proof,
		}
	default:
		respondError(w, http.StatusBadRequest, "BadRequest", "path must be admin or attested")
		return
	}

	if err := s.engine.Authority().Apply(common.HexToAddress(req.Caller), update); err != nil {
		s.respondKind(w, err)
		return
	}
	respondJSON(w, map[string]string{"matcher": s.engine.Authority().Matcher().Hex()})
}

func (s *Server) handlePrivacyAccess(w http.ResponseWriter, r *http.Request) {
	s.engine.RequestPrivacyAccess()
	respondJSON(w, map[string]string{"status": "granted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	auth := s.engine.Authority()
	respondJSON(w, StatusInfo{
		OrderCount: s.book.Count(),
		Matcher:    auth.Matcher().Hex(),
		Admin:      auth.Admin().Hex(),
	})
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.tokens.List()
	response := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		response[i] = TokenInfo{
			Symbol:  t.Symbol(),
			Address: t.Address().Hex(),
			Granted: t.HasAccess(s.engine.Address()),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// handleWebSocket handles WebSocket upgrade and client lifecycle.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// ==============================
// Helper Functions
// ==============================

// ErrorResponse is the uniform error envelope. Error carries the failure
// kind; Message carries detail.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func orderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid order id")
		return 0, false
	}
	return id, true
}

func callerParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller := r.URL.Query().Get("caller")
	if !common.IsHexAddress(caller) {
		respondError(w, http.StatusBadRequest, "BadRequest", "caller query parameter required")
		return common.Address{}, false
	}
	return common.HexToAddress(caller), true
}

// respondKind maps a failure to its reason string and HTTP status —
// the reverted-transaction reason surface callers branch on.
func (s *Server) respondKind(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), reasonFor(err), err.Error())
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ledger.ErrOrderNotFound):
		return "OrderNotFound"
	case errors.Is(err, ledger.ErrOrderAlreadyFilled):
		return "OrderAlreadyFilled"
	case errors.Is(err, ledger.ErrOrderCancelled):
		return "OrderCancelled"
	case errors.Is(err, ledger.ErrEmptyPayload),
		errors.Is(err, ledger.ErrPayloadTooLarge),
		errors.Is(err, ledger.ErrBadPayload):
		return "BadPayload"
	case errors.Is(err, settlement.ErrSideMismatch):
		return "SideMismatch"
	case errors.Is(err, settlement.ErrAssetMismatch):
		return "AssetMismatch"
	case errors.Is(err, settlement.ErrPriceMismatch):
		return "PriceMismatch"
	case errors.Is(err, settlement.ErrSizeExceeded):
		return "SizeExceeded"
	case errors.Is(err, settlement.ErrOwnerMismatch):
		return "OwnerMismatch"
	case errors.Is(err, settlement.ErrTransferFailed):
		return "TransferFailed"
	case errors.Is(err, settlement.ErrBadAttestation):
		return "BadAttestation"
	default:
		return "Internal"
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, settlement.ErrBadAttestation):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrOrderAlreadyFilled),
		errors.Is(err, ledger.ErrOrderCancelled),
		errors.Is(err, settlement.ErrTransferFailed):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrEmptyPayload),
		errors.Is(err, ledger.ErrPayloadTooLarge),
		errors.Is(err, ledger.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrSideMismatch),
		errors.Is(err, settlement.ErrAssetMismatch),
		errors.Is(err, settlement.ErrPriceMismatch),
		errors.Is(err, settlement.ErrSizeExceeded),
		errors.Is(err, settlement.ErrOwnerMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errKind string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errKind,
		Message: message,
	})
}
