package lending

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyunwoo-ko/vaultlend/params"
)

var acct = common.HexToAddress("0xAA00000000000000000000000000000000000000")

func activePosition(principal int64, lastAccrual int64) *Position {
	pos := NewPosition(acct)
	pos.Principal = big.NewInt(principal)
	pos.LastAccrual = lastAccrual
	return pos
}

// TestAccrueZeroPrincipal verifies no interest ever accrues on zero debt and
// the accrual clock is left untouched.
func TestAccrueZeroPrincipal(t *testing.T) {
	pos := NewPosition(acct)
	Accrue(pos, 1_000_000)

	if pos.AccruedInterest.Sign() != 0 {
		t.Errorf("interest = %s, want 0", pos.AccruedInterest)
	}
	if pos.LastAccrual != 0 {
		t.Errorf("last accrual = %d, want 0 (untouched)", pos.LastAccrual)
	}
}

// TestAccrueFirstEver verifies the first accrual of an active loan only
// stamps the clock: there is no prior instant to measure elapsed time from.
func TestAccrueFirstEver(t *testing.T) {
	pos := activePosition(1000, 0)
	Accrue(pos, 5000)

	if pos.AccruedInterest.Sign() != 0 {
		t.Errorf("interest = %s, want 0 on first accrual", pos.AccruedInterest)
	}
	if pos.LastAccrual != 5000 {
		t.Errorf("last accrual = %d, want 5000", pos.LastAccrual)
	}
}

// TestAccrueOnePeriod: 1000 principal over exactly one period at 5% yields
// exactly 50.
func TestAccrueOnePeriod(t *testing.T) {
	start := int64(1_000_000)
	pos := activePosition(1000, start)
	Accrue(pos, start+params.PeriodSeconds)

	if pos.AccruedInterest.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("interest = %s, want 50", pos.AccruedInterest)
	}
}

// TestAccrueIdempotent: accruing twice at the same instant changes nothing
// after the first call.
func TestAccrueIdempotent(t *testing.T) {
	start := int64(1_000_000)
	now := start + 86400
	pos := activePosition(1000, start)

	Accrue(pos, now)
	first := new(big.Int).Set(pos.AccruedInterest)

	Accrue(pos, now)
	if pos.AccruedInterest.Cmp(first) != 0 {
		t.Errorf("second accrue changed interest: %s -> %s", first, pos.AccruedInterest)
	}
	if pos.LastAccrual != now {
		t.Errorf("last accrual = %d, want %d", pos.LastAccrual, now)
	}
}

// TestAccrueTruncation: intra-period fractional interest floors to zero.
// 1000 * 5 * 1 / (100 * 604800) = 5000/60480000 < 1.
func TestAccrueTruncation(t *testing.T) {
	start := int64(1_000_000)
	pos := activePosition(1000, start)
	Accrue(pos, start+1)

	if pos.AccruedInterest.Sign() != 0 {
		t.Errorf("interest = %s, want 0 after one second", pos.AccruedInterest)
	}
	if pos.LastAccrual != start+1 {
		t.Errorf("last accrual = %d, want %d", pos.LastAccrual, start+1)
	}
}

// TestAccrueMonotonic: for a fixed principal, interest is non-decreasing in
// time.
func TestAccrueMonotonic(t *testing.T) {
	start := int64(1_000_000)
	prev := big.NewInt(0)
	for _, elapsed := range []int64{0, 1, 3600, 86400, 604800, 2 * 604800, 10 * 604800} {
		pos := activePosition(1000, start)
		Accrue(pos, start+elapsed)
		if pos.AccruedInterest.Cmp(prev) < 0 {
			t.Fatalf("interest decreased at elapsed=%d: %s < %s", elapsed, pos.AccruedInterest, prev)
		}
		prev = pos.AccruedInterest
	}
}

// TestAccrueSplitEqualsWhole: accruing in two steps can only lose truncation
// dust versus one step, never gain. With period-aligned steps they agree
// exactly.
func TestAccrueSplitEqualsWhole(t *testing.T) {
	start := int64(1_000_000)

	whole := activePosition(1000, start)
	Accrue(whole, start+2*params.PeriodSeconds)

	split := activePosition(1000, start)
	Accrue(split, start+params.PeriodSeconds)
	Accrue(split, start+2*params.PeriodSeconds)

	if whole.AccruedInterest.Cmp(split.AccruedInterest) != 0 {
		t.Errorf("whole = %s, split = %s", whole.AccruedInterest, split.AccruedInterest)
	}
	if whole.AccruedInterest.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("two periods on 1000 = %s, want 100", whole.AccruedInterest)
	}
}

// TestProjectionMatchesAccrual: the read-only projection must agree
// bit-for-bit with what a mutating accrual at the same instant persists, and
// must not touch the position.
func TestProjectionMatchesAccrual(t *testing.T) {
	start := int64(1_000_000)
	for _, elapsed := range []int64{0, 1, 59, 3600, 86400, 604800, 999999} {
		pos := activePosition(12345, start)
		pos.AccruedInterest = big.NewInt(7)

		projected := ProjectedInterest(pos, start+elapsed)

		if pos.AccruedInterest.Cmp(big.NewInt(7)) != 0 {
			t.Fatalf("projection mutated position at elapsed=%d", elapsed)
		}
		Accrue(pos, start+elapsed)
		if projected.Cmp(pos.AccruedInterest) != 0 {
			t.Errorf("elapsed=%d: projected %s != persisted %s", elapsed, projected, pos.AccruedInterest)
		}
	}
}

// TestProjectionNeverAccruedLoan mirrors the first-accrual rule: projecting a
// loan whose clock was never stamped yields zero.
func TestProjectionNeverAccruedLoan(t *testing.T) {
	pos := activePosition(1000, 0)
	if got := ProjectedInterest(pos, 9_999_999); got.Sign() != 0 {
		t.Errorf("projected = %s, want 0", got)
	}
}

func TestMaxBorrowable(t *testing.T) {
	cases := []struct {
		collateral int64
		want       int64
	}{
		{0, 0},
		{1, 0},      // 1*100/150 floors to 0
		{3, 2},      // exactly 2/3
		{1500, 1000},
		{100, 66},   // floor of 66.67
	}
	for _, tc := range cases {
		got := params.MaxBorrowable(big.NewInt(tc.collateral))
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("MaxBorrowable(%d) = %s, want %d", tc.collateral, got, tc.want)
		}
	}
}
