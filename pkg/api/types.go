package api

// API response types for REST endpoints and WebSocket messages

// PositionInfo is the read-only 4-tuple view of an account. Amounts are
// decimal strings so arbitrary-precision values survive JSON round-trips.
type PositionInfo struct {
	Address           string `json:"address"`
	Collateral        string `json:"collateral"`
	Principal         string `json:"principal"`
	ProjectedInterest string `json:"projectedInterest"`
	TotalDebt         string `json:"totalDebt"`
}

// StatsInfo is the pool-wide aggregate view.
type StatsInfo struct {
	TotalCollateral    string `json:"totalCollateral"`
	TotalLoans         string `json:"totalLoans"`
	AvailableLiquidity string `json:"availableLiquidity"`
}

// EventInfo is one ledger event as served over REST and WebSocket.
type EventInfo struct {
	Seq       uint64 `json:"seq"`
	Type      string `json:"type"`
	Account   string `json:"account"`
	Amount    string `json:"amount,omitempty"`
	Principal string `json:"principal,omitempty"`
	Interest  string `json:"interest,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// OpRequest is the body for operation submission endpoints. Amount is a
// decimal string; repay, withdraw, and accrue ignore it.
type OpRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
}

// OpResponse acknowledges an accepted operation.
type OpResponse struct {
	Status string `json:"status"`
}

// ErrorResponse reports a failed request; Error carries the ledger error kind.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
