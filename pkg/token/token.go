package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotOwner              = errors.New("token: mint restricted to owner")
)

// Ledger is the surface the lending engine needs from an asset ledger. The
// engine only ever pulls (TransferFrom), pushes (Transfer), and reads
// balances; minting and burning stay with the token itself.
type Ledger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(owner, spender, to common.Address, amount *big.Int) error
	BalanceOf(account common.Address) *big.Int
}

// Token is an in-memory fungible token ledger with owner-gated minting and
// allowance-based delegated transfers. Conservation holds at all times:
// sum(balances) == totalSupply.
type Token struct {
	mu sync.RWMutex

	Symbol string
	owner  common.Address

	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
}

func New(symbol string, owner common.Address) *Token {
	return &Token{
		Symbol:      symbol,
		owner:       owner,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

func (t *Token) balanceLocked(account common.Address) *big.Int {
	if bal, ok := t.balances[account]; ok {
		return bal
	}
	bal := big.NewInt(0)
	t.balances[account] = bal
	return bal
}

func (t *Token) allowanceLocked(owner, spender common.Address) *big.Int {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	if amt, ok := spenders[spender]; ok {
		return amt
	}
	amt := big.NewInt(0)
	spenders[spender] = amt
	return amt
}

// BalanceOf returns a copy of the account's balance; zero for unknown accounts.
func (t *Token) BalanceOf(account common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if spenders, ok := t.allowances[owner]; ok {
		if amt, ok := spenders[spender]; ok {
			return new(big.Int).Set(amt)
		}
	}
	return big.NewInt(0)
}

// Mint creates new tokens for an account. Only the ledger owner may mint.
func (t *Token) Mint(caller, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrNotOwner
	}
	bal := t.balanceLocked(to)
	t.balances[to] = new(big.Int).Add(bal, amount)
	t.totalSupply = new(big.Int).Add(t.totalSupply, amount)
	return nil
}

// Burn destroys tokens from the caller's own balance.
func (t *Token) Burn(caller common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceLocked(caller)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	t.balances[caller] = new(big.Int).Sub(bal, amount)
	t.totalSupply = new(big.Int).Sub(t.totalSupply, amount)
	return nil
}

// Approve sets the spender's allowance over the owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowanceLocked(owner, spender)
	t.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves tokens from one account to another.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

// TransferFrom moves tokens on behalf of the owner, consuming the spender's
// allowance.
func (t *Token) TransferFrom(owner, spender, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowanceLocked(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance, allowed, amount)
	}
	if err := t.transferLocked(owner, to, amount); err != nil {
		return err
	}
	t.allowances[owner][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (t *Token) transferLocked(from, to common.Address, amount *big.Int) error {
	bal := t.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	t.balances[from] = new(big.Int).Sub(bal, amount)
	toBal := t.balanceLocked(to)
	t.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}
