package lending

import "errors"

var (
	ErrInvalidAmount             = errors.New("lending: amount must be positive")
	ErrCollateralizationExceeded = errors.New("lending: debt would exceed collateral ceiling")
	ErrInsufficientLiquidity     = errors.New("lending: insufficient pool liquidity")
	ErrNoOutstandingDebt         = errors.New("lending: no outstanding debt to repay")
	ErrOutstandingDebt           = errors.New("lending: outstanding debt blocks withdrawal")
	ErrNoCollateral              = errors.New("lending: no collateral to withdraw")
	ErrUnauthorized              = errors.New("lending: caller is not the administrator")
	ErrAssetTransferFailed       = errors.New("lending: asset transfer failed")
	ErrReentrancy                = errors.New("lending: reentrant call blocked")

	// ErrUnderflow means a global counter was asked to go negative. It is not
	// user-triggerable; if it surfaces, the engine itself is broken.
	ErrUnderflow = errors.New("lending: ledger counter underflow")
)
