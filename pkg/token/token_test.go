package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner   = common.HexToAddress("0x01")
	holder  = common.HexToAddress("0x02")
	spender = common.HexToAddress("0x03")
	other   = common.HexToAddress("0x04")
)

func TestMintRestrictedToOwner(t *testing.T) {
	tok := New("TST", owner)

	if err := tok.Mint(holder, holder, big.NewInt(100)); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner mint: got %v, want ErrNotOwner", err)
	}
	if err := tok.Mint(owner, holder, big.NewInt(100)); err != nil {
		t.Fatalf("owner mint failed: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("balance = %s, want 100", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total supply = %s, want 100", got)
	}
}

func TestTransferConservation(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	if err := tok.Transfer(holder, other, big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("holder balance = %s, want 60", got)
	}
	if got := tok.BalanceOf(other); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("other balance = %s, want 40", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total supply changed: %s", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(10)); err != nil {
		t.Fatal(err)
	}

	err := tok.Transfer(holder, other, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("failed transfer changed balance: %s", got)
	}
}

func TestTransferInvalidAmount(t *testing.T) {
	tok := New("TST", owner)
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if err := tok.Transfer(holder, other, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("transfer %v: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := tok.Approve(holder, spender, big.NewInt(70)); err != nil {
		t.Fatal(err)
	}

	if err := tok.TransferFrom(holder, spender, other, big.NewInt(50)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := tok.Allowance(holder, spender); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("remaining allowance = %s, want 20", got)
	}

	// 30 remains in balance terms but only 20 in allowance terms.
	err := tok.TransferFrom(holder, spender, other, big.NewInt(30))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
}

// TestTransferFromFailedKeepsAllowance: a balance failure must not burn the
// allowance.
func TestTransferFromFailedKeepsAllowance(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(10)); err != nil {
		t.Fatal(err)
	}
	if err := tok.Approve(holder, spender, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	err := tok.TransferFrom(holder, spender, other, big.NewInt(50))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if got := tok.Allowance(holder, spender); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("allowance burned on failure: %s", got)
	}
}

func TestBurn(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	if err := tok.Burn(holder, big.NewInt(30)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("balance = %s, want 70", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("total supply = %s, want 70", got)
	}

	if err := tok.Burn(holder, big.NewInt(71)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("over-burn: got %v, want ErrInsufficientBalance", err)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Mint(owner, holder, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	tok.BalanceOf(holder).SetInt64(0)
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("balance mutated through returned copy: %s", got)
	}
}

func TestApproveZeroRevokes(t *testing.T) {
	tok := New("TST", owner)
	if err := tok.Approve(holder, spender, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	if err := tok.Approve(holder, spender, big.NewInt(0)); err != nil {
		t.Fatalf("zero approve failed: %v", err)
	}
	if got := tok.Allowance(holder, spender); got.Sign() != 0 {
		t.Errorf("allowance = %s, want 0", got)
	}
}
