package lending

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hyunwoo-ko/vaultlend/params"
	"github.com/hyunwoo-ko/vaultlend/pkg/token"
	"github.com/hyunwoo-ko/vaultlend/pkg/util"
)

// Asset selects one of the pool's two ledgers.
type Asset int

const (
	CollateralAsset Asset = iota
	LoanAsset
)

func (a Asset) String() string {
	switch a {
	case CollateralAsset:
		return "collateral"
	case LoanAsset:
		return "loan"
	default:
		return "unknown"
	}
}

// Engine runs the lending pool's state transitions against the ledger store.
//
// Every mutating operation follows the same sequence: take the reentrancy
// guard, accrue the caller's interest up to now, validate preconditions
// against the now-current position, mutate the position and global counters,
// and perform the external asset transfer. Outbound transfers (push) come
// after the mutation; inbound transfers (pull) come before it, so a reentering
// call can never observe a half-updated position. Nested calls into any
// guarded operation fail with ErrReentrancy instead of deadlocking.
type Engine struct {
	log   *zap.Logger
	store *Store
	clock util.Clock

	collateral token.Ledger
	loan       token.Ledger

	// pool is the engine's own identity on both token ledgers: deposits and
	// repayments land here, borrows and withdrawals are paid from here.
	pool  common.Address
	admin common.Address

	// busy is the reentrancy guard, held across the external-call window of
	// each mutating operation.
	busy atomic.Bool

	sinkMu sync.RWMutex
	sinks  []EventSink
}

// NewEngine wires the engine to its store, the two asset ledgers, and the
// pool / administrator identities.
func NewEngine(log *zap.Logger, store *Store, clock util.Clock, collateral, loan token.Ledger, pool, admin common.Address) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:        log,
		store:      store,
		clock:      clock,
		collateral: collateral,
		loan:       loan,
		pool:       pool,
		admin:      admin,
	}
}

// Subscribe registers a sink that receives every subsequent event.
func (e *Engine) Subscribe(sink EventSink) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sinks = append(e.sinks, sink)
}

func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (e *Engine) exit() { e.busy.Store(false) }

func (e *Engine) now() int64 { return e.clock.Now().Unix() }

func (e *Engine) emit(evt Event) {
	evt, err := e.store.AppendEvent(evt)
	if err != nil {
		e.log.Warn("event append failed", zap.String("type", string(evt.Type)), zap.Error(err))
	}
	e.sinkMu.RLock()
	sinks := e.sinks
	e.sinkMu.RUnlock()
	for _, sink := range sinks {
		sink.Publish(evt)
	}
}

// DepositCollateral pulls amount of the collateral asset from the caller into
// the pool and credits their position. The caller must have approved the pool
// for at least amount beforehand.
func (e *Engine) DepositCollateral(caller common.Address, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	now := e.now()
	pos := e.store.Get(caller)
	Accrue(pos, now)

	// Pull before mutating: the position only reflects funds the pool holds.
	if err := e.collateral.TransferFrom(caller, e.pool, e.pool, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrAssetTransferFailed, err)
	}

	pos.Collateral = new(big.Int).Add(pos.Collateral, amount)
	if err := e.store.Put(caller, pos); err != nil {
		return err
	}
	if err := e.store.AddCollateral(amount); err != nil {
		return err
	}

	e.log.Info("collateral deposited",
		zap.String("account", caller.Hex()),
		zap.String("amount", amount.String()),
	)
	e.emit(Event{Type: EventCollateralDeposited, Account: caller, Amount: new(big.Int).Set(amount), Timestamp: now})
	return nil
}

// Borrow pushes amount of the loan asset to the caller and adds it to their
// principal, provided the resulting total debt stays under the collateral
// ceiling and the pool holds enough liquidity.
func (e *Engine) Borrow(caller common.Address, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	now := e.now()
	pos := e.store.Get(caller)
	Accrue(pos, now)

	// Ceiling check runs against debt that already includes current interest.
	maxBorrowable := params.MaxBorrowable(pos.Collateral)
	projectedDebt := new(big.Int).Add(pos.Debt(), amount)
	if projectedDebt.Cmp(maxBorrowable) > 0 {
		return ErrCollateralizationExceeded
	}
	if e.loan.BalanceOf(e.pool).Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	prev := e.store.Get(caller)
	pos.Principal = new(big.Int).Add(pos.Principal, amount)
	// Interest on the new principal starts at the borrow instant. For an
	// already-active loan Accrue above stamped the clock; for a fresh or
	// fully-repaid position it did not, and a stale instant would charge
	// interest for time with zero debt.
	pos.LastAccrual = now
	if err := e.store.Put(caller, pos); err != nil {
		return err
	}
	if err := e.store.AddLoans(amount); err != nil {
		return err
	}

	// Mutate-then-pay: state is consistent before the pool pays out. The
	// liquidity precondition makes a push failure unreachable; if the ledger
	// still refuses, undo the mutation so nothing partial survives.
	if err := e.loan.Transfer(e.pool, caller, amount); err != nil {
		if putErr := e.store.Put(caller, prev); putErr != nil {
			e.log.Error("borrow rollback failed", zap.String("account", caller.Hex()), zap.Error(putErr))
		}
		if subErr := e.store.SubLoans(amount); subErr != nil {
			e.log.Error("borrow rollback failed", zap.String("account", caller.Hex()), zap.Error(subErr))
		}
		return fmt.Errorf("%w: %w", ErrAssetTransferFailed, err)
	}

	e.log.Info("loan borrowed",
		zap.String("account", caller.Hex()),
		zap.String("amount", amount.String()),
		zap.String("principal", pos.Principal.String()),
	)
	e.emit(Event{Type: EventLoanBorrowed, Account: caller, Amount: new(big.Int).Set(amount), Timestamp: now})
	return nil
}

// Repay settles the caller's entire outstanding debt (principal plus accrued
// interest); there is no partial repayment. The caller must have approved the
// pool for at least the full debt. The repaid amounts reported on the event
// are captured before the position is zeroed.
func (e *Engine) Repay(caller common.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	now := e.now()
	pos := e.store.Get(caller)
	Accrue(pos, now)

	totalDebt := pos.Debt()
	if totalDebt.Sign() == 0 {
		return ErrNoOutstandingDebt
	}

	// Pull the full debt before touching state.
	if err := e.loan.TransferFrom(caller, e.pool, e.pool, totalDebt); err != nil {
		return fmt.Errorf("%w: %w", ErrAssetTransferFailed, err)
	}

	principalRepaid := new(big.Int).Set(pos.Principal)
	interestRepaid := new(big.Int).Set(pos.AccruedInterest)

	// Only principal ever entered the global counter; interest stays
	// per-account.
	if err := e.store.SubLoans(principalRepaid); err != nil {
		return err
	}
	pos.Principal = big.NewInt(0)
	pos.AccruedInterest = big.NewInt(0)
	pos.LastAccrual = now
	if err := e.store.Put(caller, pos); err != nil {
		return err
	}

	e.log.Info("loan repaid",
		zap.String("account", caller.Hex()),
		zap.String("principal", principalRepaid.String()),
		zap.String("interest", interestRepaid.String()),
	)
	e.emit(Event{Type: EventLoanRepaid, Account: caller, Principal: principalRepaid, Interest: interestRepaid, Timestamp: now})
	return nil
}

// WithdrawCollateral returns the caller's entire collateral balance. Blocked
// while any debt, principal or interest, remains outstanding.
func (e *Engine) WithdrawCollateral(caller common.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	now := e.now()
	pos := e.store.Get(caller)
	Accrue(pos, now)

	if pos.Debt().Sign() != 0 {
		return ErrOutstandingDebt
	}
	if pos.Collateral.Sign() == 0 {
		return ErrNoCollateral
	}

	amount := new(big.Int).Set(pos.Collateral)
	prev := e.store.Get(caller)
	pos.Collateral = big.NewInt(0)
	if err := e.store.Put(caller, pos); err != nil {
		return err
	}
	if err := e.store.SubCollateral(amount); err != nil {
		return err
	}

	if err := e.collateral.Transfer(e.pool, caller, amount); err != nil {
		if putErr := e.store.Put(caller, prev); putErr != nil {
			e.log.Error("withdraw rollback failed", zap.String("account", caller.Hex()), zap.Error(putErr))
		}
		if addErr := e.store.AddCollateral(amount); addErr != nil {
			e.log.Error("withdraw rollback failed", zap.String("account", caller.Hex()), zap.Error(addErr))
		}
		return fmt.Errorf("%w: %w", ErrAssetTransferFailed, err)
	}

	e.log.Info("collateral withdrawn",
		zap.String("account", caller.Hex()),
		zap.String("amount", amount.String()),
	)
	e.emit(Event{Type: EventCollateralWithdrawn, Account: caller, Amount: amount, Timestamp: now})
	return nil
}

// AccrueInterest is the public touch: it folds the target account's interest
// up to now into persisted state. Anyone may touch any account; accrual is
// otherwise lazy, piggybacking on the account's own next interaction.
func (e *Engine) AccrueInterest(target common.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	now := e.now()
	pos := e.store.Get(target)
	before := new(big.Int).Set(pos.AccruedInterest)
	beforeClock := pos.LastAccrual
	Accrue(pos, now)

	if pos.AccruedInterest.Cmp(before) == 0 && pos.LastAccrual == beforeClock {
		return nil
	}
	if err := e.store.Put(target, pos); err != nil {
		return err
	}

	delta := new(big.Int).Sub(pos.AccruedInterest, before)
	if delta.Sign() > 0 {
		e.log.Info("interest accrued",
			zap.String("account", target.Hex()),
			zap.String("delta", delta.String()),
			zap.String("accrued", pos.AccruedInterest.String()),
		)
		e.emit(Event{Type: EventInterestAccrued, Account: target, Amount: delta, Timestamp: now})
	}
	return nil
}

// UserView is the read-only 4-tuple projection of an account. Interest is
// projected to now without being persisted; the projection agrees exactly
// with what a mutating accrual at the same instant would store.
type UserView struct {
	Collateral        *big.Int
	Principal         *big.Int
	ProjectedInterest *big.Int
	TotalDebt         *big.Int
}

// GetUserView never mutates and never fails; unknown accounts read as zero.
func (e *Engine) GetUserView(addr common.Address) UserView {
	pos := e.store.Get(addr)
	projected := ProjectedInterest(pos, e.now())
	return UserView{
		Collateral:        pos.Collateral,
		Principal:         pos.Principal,
		ProjectedInterest: projected,
		TotalDebt:         new(big.Int).Add(pos.Principal, projected),
	}
}

// ProtocolStats is the pool-wide aggregate view.
type ProtocolStats struct {
	TotalCollateral    *big.Int
	TotalLoans         *big.Int
	AvailableLiquidity *big.Int
}

// GetProtocolStats reads the two global counters and the pool's live
// loan-asset balance. Liquidity comes from the external ledger, so it can
// exceed TotalLoans when seed liquidity sits unborrowed.
func (e *Engine) GetProtocolStats() ProtocolStats {
	return ProtocolStats{
		TotalCollateral:    e.store.TotalCollateral(),
		TotalLoans:         e.store.TotalLoans(),
		AvailableLiquidity: e.loan.BalanceOf(e.pool),
	}
}

// EmergencyDrain unconditionally pushes amount of the chosen asset from the
// pool to the administrator. An operational escape hatch only: it does no
// protocol bookkeeping and leaves the accounting counters untouched.
func (e *Engine) EmergencyDrain(caller common.Address, asset Asset, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if caller != e.admin || e.admin == (common.Address{}) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	ledger := e.collateral
	if asset == LoanAsset {
		ledger = e.loan
	}
	if err := ledger.Transfer(e.pool, e.admin, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrAssetTransferFailed, err)
	}

	e.log.Warn("emergency drain",
		zap.String("asset", asset.String()),
		zap.String("amount", amount.String()),
		zap.String("admin", e.admin.Hex()),
	)
	return nil
}

// CheckInvariants verifies that the global counters equal the per-position
// sums. Test and debugging hook; a failure means an engine bug.
func (e *Engine) CheckInvariants() error {
	sumCollateral := big.NewInt(0)
	sumLoans := big.NewInt(0)
	for _, pos := range e.store.Positions() {
		if err := pos.Validate(); err != nil {
			return fmt.Errorf("position %s: %w", pos.Account.Hex(), err)
		}
		sumCollateral.Add(sumCollateral, pos.Collateral)
		sumLoans.Add(sumLoans, pos.Principal)
	}
	if got := e.store.TotalCollateral(); got.Cmp(sumCollateral) != 0 {
		return fmt.Errorf("total collateral %s != position sum %s", got, sumCollateral)
	}
	if got := e.store.TotalLoans(); got.Cmp(sumLoans) != 0 {
		return fmt.Errorf("total loans %s != position sum %s", got, sumLoans)
	}
	return nil
}
