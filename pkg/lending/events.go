package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a ledger event.
type EventType string

const (
	EventCollateralDeposited EventType = "collateral_deposited"
	EventCollateralWithdrawn EventType = "collateral_withdrawn"
	EventLoanBorrowed        EventType = "loan_borrowed"
	EventLoanRepaid          EventType = "loan_repaid"
	EventInterestAccrued     EventType = "interest_accrued"
)

// Event is one entry in the append-only ledger event log. Amount carries the
// moved value for deposits, borrows, withdrawals, and accrual deltas; repays
// report Principal and Interest separately, captured before the position is
// zeroed.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Account   common.Address `json:"account"`
	Amount    *big.Int       `json:"amount,omitempty"`
	Principal *big.Int       `json:"principal,omitempty"`
	Interest  *big.Int       `json:"interest,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// EventSink receives every engine event as it is appended. Sinks are for
// external observability (the API hub, log tails); invariant correctness
// never depends on them.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(evt Event) { f(evt) }
