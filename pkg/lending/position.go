package lending

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the per-account lending record. Amounts are nominal token units
// as big integers; LastAccrual is the unix second up to which interest has
// been folded into AccruedInterest, with 0 meaning "never accrued".
//
// Positions are created lazily (a zero-valued position is behaviorally
// identical to an absent one) and never deleted, only zeroed field by field.
type Position struct {
	Account         common.Address `json:"account"`
	Collateral      *big.Int       `json:"collateral"`
	Principal       *big.Int       `json:"principal"`
	AccruedInterest *big.Int       `json:"accruedInterest"`
	LastAccrual     int64          `json:"lastAccrual"`
}

// NewPosition creates a zero-valued position for an account.
func NewPosition(addr common.Address) *Position {
	return &Position{
		Account:         addr,
		Collateral:      big.NewInt(0),
		Principal:       big.NewInt(0),
		AccruedInterest: big.NewInt(0),
	}
}

// normalize backfills nil amount fields after JSON decoding.
func (p *Position) normalize() *Position {
	if p.Collateral == nil {
		p.Collateral = big.NewInt(0)
	}
	if p.Principal == nil {
		p.Principal = big.NewInt(0)
	}
	if p.AccruedInterest == nil {
		p.AccruedInterest = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy. The store hands out clones so callers can stage
// mutations without touching authoritative state until Put.
func (p *Position) Clone() *Position {
	p.normalize()
	return &Position{
		Account:         p.Account,
		Collateral:      new(big.Int).Set(p.Collateral),
		Principal:       new(big.Int).Set(p.Principal),
		AccruedInterest: new(big.Int).Set(p.AccruedInterest),
		LastAccrual:     p.LastAccrual,
	}
}

// Debt returns principal + accrued interest.
func (p *Position) Debt() *big.Int {
	p.normalize()
	return new(big.Int).Add(p.Principal, p.AccruedInterest)
}

// IsZero reports whether every balance field is zero.
func (p *Position) IsZero() bool {
	p.normalize()
	return p.Collateral.Sign() == 0 && p.Principal.Sign() == 0 && p.AccruedInterest.Sign() == 0
}

// Validate checks position invariants.
func (p *Position) Validate() error {
	p.normalize()
	if p.Collateral.Sign() < 0 {
		return fmt.Errorf("negative collateral: %s", p.Collateral)
	}
	if p.Principal.Sign() < 0 {
		return fmt.Errorf("negative principal: %s", p.Principal)
	}
	if p.AccruedInterest.Sign() < 0 {
		return fmt.Errorf("negative accrued interest: %s", p.AccruedInterest)
	}
	if p.LastAccrual < 0 {
		return fmt.Errorf("negative accrual instant: %d", p.LastAccrual)
	}
	// Interest resets to zero exactly when principal does (full repayment).
	if p.Principal.Sign() == 0 && p.AccruedInterest.Sign() != 0 {
		return fmt.Errorf("accrued interest %s with zero principal", p.AccruedInterest)
	}
	return nil
}
