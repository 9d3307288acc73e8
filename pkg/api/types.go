package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest carries an order submission. The payload is the
// hex-encoded encrypted/ABI blob; the ledger never interprets it on the
// public path.
type SubmitOrderRequest struct {
	Owner   string `json:"owner"`
	Payload string `json:"payload"` // 0x-prefixed hex
}

// CancelOrderRequest carries an owner-initiated cancellation.
type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

// ExecuteMatchRequest is the settlement call surface.
type ExecuteMatchRequest struct {
	Caller      string `json:"caller"`
	BuyOrderID  uint64 `json:"buyOrderId"`
	SellOrderID uint64 `json:"sellOrderId"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	Price       int64  `json:"price"`
}

// AuthorityUpdateRequest rotates the privileged matcher. Path is either
// "admin" or "attested"; Proof is required for the attested path.
type AuthorityUpdateRequest struct {
	Caller     string `json:"caller"`
	Path       string `json:"path"`
	NewMatcher string `json:"newMatcher"`
	Proof      string `json:"proof,omitempty"` // 0x-prefixed hex
}

// ==============================
// REST Response Types
// ==============================

// SubmitOrderResponse returns the assigned sequential order ID.
type SubmitOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// OrderStatusInfo is the public view of an order: existence and
// lifecycle flags only. Payload and owner stay behind the restricted
// accessors.
type OrderStatusInfo struct {
	OrderID   uint64 `json:"orderId"`
	Exists    bool   `json:"exists"`
	Filled    bool   `json:"filled"`
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
}

// PayloadInfo is the restricted payload view.
type PayloadInfo struct {
	OrderID uint64 `json:"orderId"`
	Payload string `json:"payload"` // 0x-prefixed hex
}

// OwnerInfo is the restricted owner view.
type OwnerInfo struct {
	OrderID uint64 `json:"orderId"`
	Owner   string `json:"owner"`
}

// OrdersInfo lists an owner's order IDs.
type OrdersInfo struct {
	Owner    string   `json:"owner"`
	OrderIDs []uint64 `json:"orderIds"`
}

// StatusInfo summarizes ledger and authority state for the matcher's
// poll loop.
type StatusInfo struct {
	OrderCount uint64 `json:"orderCount"`
	Matcher    string `json:"matcher"`
	Admin      string `json:"admin"`
}

// TokenInfo describes a registered confidential asset.
type TokenInfo struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	Granted bool   `json:"granted"` // engine holds a privacy grant
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest subscribes/unsubscribes event channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent is a broadcast ledger or settlement event. Submitted events
// carry the order ID and owner, never the payload.
type WSEvent struct {
	Channel   string      `json:"channel"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// SubmittedEvent mirrors the on-chain "submitted" notification.
type SubmittedEvent struct {
	OrderID uint64 `json:"orderId"`
	Owner   string `json:"owner"`
}

// MatchedEvent mirrors the on-chain "matched" notification.
type MatchedEvent struct {
	BuyOrderID  uint64 `json:"buyOrderId"`
	SellOrderID uint64 `json:"sellOrderId"`
	Amount      int64  `json:"amount"`
	Price       int64  `json:"price"`
}
