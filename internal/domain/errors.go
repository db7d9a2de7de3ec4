package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionNotFound is returned when the ledger has no record of the
	// proof transaction. Absence may mean not-yet-finalized, not failure.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionFailed is returned when the proof transaction executed but
	// was reverted by the ledger
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrNoQualifyingTransfer is returned when the proof transaction succeeded
	// but contains no transfer of the configured asset to the treasury
	ErrNoQualifyingTransfer = errors.New("no qualifying transfer to treasury")

	// ErrInsufficientAmount is returned when the summed qualifying transfers
	// fall below the configured minimum
	ErrInsufficientAmount = errors.New("insufficient payment amount")

	// ErrNoRecentPayment is returned when payment discovery finds no
	// qualifying transfer from the payer inside the lookback window
	ErrNoRecentPayment = errors.New("no recent payment found")

	// ErrMintReverted is returned when the mint call was included on-chain but
	// rejected by the token contract
	ErrMintReverted = errors.New("mint transaction reverted")

	// ErrMintTimeout is returned when mint confirmation does not arrive within
	// the configured timeout
	ErrMintTimeout = errors.New("mint confirmation timed out")

	// ErrMintIndeterminate is returned when a mint was broadcast but its
	// outcome is unknown. The proof stays claimed; callers must not redispatch.
	ErrMintIndeterminate = errors.New("mint outcome indeterminate")

	// ErrMintInProgress is returned when another request holds the claim for
	// the same proof and has not finished dispatching yet
	ErrMintInProgress = errors.New("mint already in progress for this payment")

	// ErrServerMisconfigured is returned when the mint path cannot run
	// because the signing credential or contract address is missing
	ErrServerMisconfigured = errors.New("server misconfigured")
)

// AuthorityMismatchError is returned when the dispatcher's signing key does
// not match the contract's recorded owner. This is operator misconfiguration,
// never retried automatically, so it carries both addresses for diagnostics.
type AuthorityMismatchError struct {
	Expected string // owner recorded on the contract
	Actual   string // address derived from the configured signing key
}

func (e *AuthorityMismatchError) Error() string {
	return fmt.Sprintf("signer is not the contract owner: contract owner is %s, signer is %s", e.Expected, e.Actual)
}
