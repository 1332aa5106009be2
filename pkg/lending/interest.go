package lending

import (
	"math/big"

	"github.com/hyunwoo-ko/vaultlend/params"
)

// interestDelta computes simple interest on a principal over elapsed seconds:
//
//	principal * InterestRatePerPeriod * elapsed / (RatePrecision * PeriodSeconds)
//
// Floor division; intra-period fractional interest truncates.
func interestDelta(principal *big.Int, elapsed int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || elapsed <= 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Mul(principal, big.NewInt(params.InterestRatePerPeriod))
	delta.Mul(delta, big.NewInt(elapsed))
	return delta.Quo(delta, big.NewInt(params.RatePrecision*params.PeriodSeconds))
}

// Accrue folds interest into the position up to the given instant, mutating
// it in place. Called at the start of every mutating engine operation.
//
// Rules:
//   - zero principal: nothing accrues and the clock is left untouched
//   - first accrual of an active loan (LastAccrual == 0): stamp the clock,
//     accrue nothing (no prior instant to measure from)
//   - otherwise add interestDelta over the elapsed seconds; a second call at
//     the same instant is a no-op
func Accrue(pos *Position, now int64) {
	pos.normalize()
	if pos.Principal.Sign() == 0 {
		return
	}
	if pos.LastAccrual == 0 {
		pos.LastAccrual = now
		return
	}
	elapsed := now - pos.LastAccrual
	if elapsed <= 0 {
		return
	}
	pos.AccruedInterest = new(big.Int).Add(pos.AccruedInterest, interestDelta(pos.Principal, elapsed))
	pos.LastAccrual = now
}

// ProjectedInterest returns the AccruedInterest a mutating Accrue at the same
// instant would persist, without touching the position. Read-only views use
// this; it must agree bit-for-bit with Accrue, so it runs the same routine on
// a clone.
func ProjectedInterest(pos *Position, now int64) *big.Int {
	projected := pos.Clone()
	Accrue(projected, now)
	return projected.AccruedInterest
}
