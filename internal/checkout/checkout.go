// Package checkout orchestrates the paid-mint pipeline: payment discovery,
// verification, idempotent consumption, and mint dispatch.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
	"github.com/SkeletronCoreSkulls/apes2/internal/minter"
	"github.com/SkeletronCoreSkulls/apes2/internal/payment"
	"github.com/SkeletronCoreSkulls/apes2/internal/store"
	"github.com/SkeletronCoreSkulls/apes2/internal/store/schema"
)

// ConfirmRequest asserts that a payment happened. TxHash is the proof; when
// absent, Payer triggers discovery of the latest qualifying payment.
type ConfirmRequest struct {
	TxHash string
	Payer  string
}

// Result is the outcome of a confirm request
type Result struct {
	TxHash           string // proof transaction consumed
	MintedTo         string
	MintTxHash       string
	AlreadyProcessed bool
}

// Service runs the verification-and-mint pipeline. A nil dispatcher degrades
// the confirm path to domain.ErrServerMisconfigured without touching the
// chain.
type Service struct {
	verifier   *payment.Verifier
	discovery  *payment.Discovery
	ledger     store.Store
	dispatcher minter.Dispatcher
	timeout    time.Duration
}

// NewService wires the pipeline
func NewService(
	verifier *payment.Verifier,
	discovery *payment.Discovery,
	ledger store.Store,
	dispatcher minter.Dispatcher,
	timeout time.Duration,
) *Service {
	return &Service{
		verifier:   verifier,
		discovery:  discovery,
		ledger:     ledger,
		dispatcher: dispatcher,
		timeout:    timeout,
	}
}

// MintReady reports whether the privileged mint path is configured
func (s *Service) MintReady() bool {
	return s.dispatcher != nil
}

// Confirm validates the payment behind the request and mints exactly one
// token to the attributed payer. At most one dispatch ever happens per
// proof: the ledger claim is an atomic compare-and-set, so concurrent
// requests bearing the same proof race at the claim, not at the dispatcher.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Result, error) {
	if s.dispatcher == nil {
		return nil, domain.ErrServerMisconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	txHash := req.TxHash
	if txHash == "" {
		found, err := s.discovery.FindLatestPayment(ctx, req.Payer)
		if err != nil {
			return nil, err
		}
		txHash = found
	}

	record, err := s.verifier.Verify(ctx, txHash)
	if err != nil {
		return nil, err
	}

	claimed, existing, err := s.ledger.Begin(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to claim payment proof: %w", err)
	}
	if !claimed {
		return s.resolveExisting(txHash, existing)
	}

	outcome, err := s.dispatcher.Dispatch(ctx, record.Payer, 1, func(mintTxHash string) {
		// Persist the broadcast marker before waiting for confirmation so a
		// crash or timeout is distinguishable from never-dispatched.
		if hookErr := s.ledger.SetDispatched(ctx, txHash, mintTxHash); hookErr != nil {
			logger.ErrorCtx(ctx, hookErr, zap.String("txHash", txHash), zap.String("mintTxHash", mintTxHash))
		}
	})
	if err != nil {
		return nil, s.settleFailure(ctx, txHash, err)
	}

	if err := s.ledger.Complete(ctx, txHash, outcome.Recipient, outcome.TxHash); err != nil {
		// The mint confirmed; losing the ledger write must not look like a
		// failed mint. Surface the success and log the gap.
		logger.ErrorCtx(ctx, err, zap.String("txHash", txHash))
	}

	logger.InfoCtx(ctx, "Mint completed",
		zap.String("txHash", txHash),
		zap.String("mintedTo", outcome.Recipient),
		zap.String("mintTxHash", outcome.TxHash))

	return &Result{
		TxHash:     txHash,
		MintedTo:   outcome.Recipient,
		MintTxHash: outcome.TxHash,
	}, nil
}

// resolveExisting maps a lost claim race to its caller-visible outcome
func (s *Service) resolveExisting(txHash string, existing *schema.ProcessedProof) (*Result, error) {
	if existing != nil && existing.Status == schema.ProofStatusProcessed {
		return &Result{
			TxHash:           txHash,
			MintedTo:         existing.Recipient,
			MintTxHash:       existing.MintTxHash,
			AlreadyProcessed: true,
		}, nil
	}
	if existing != nil && existing.MintTxHash != "" {
		// A mint was broadcast for this proof and never resolved; surfacing
		// it is mandatory, silently retrying would risk a double mint.
		return nil, fmt.Errorf("%w: mint tx %s", domain.ErrMintIndeterminate, existing.MintTxHash)
	}
	return nil, domain.ErrMintInProgress
}

// settleFailure decides whether a dispatch failure releases the claim.
// Failures before broadcast (authority mismatch, nonce, send) and clean
// reverts provably consumed nothing, so the proof is released for a retry.
// A timeout after broadcast keeps the claim: the outcome is indeterminate
// until the ledger resolves it.
func (s *Service) settleFailure(ctx context.Context, txHash string, dispatchErr error) error {
	if isIndeterminate(dispatchErr) {
		return fmt.Errorf("%w: %s", domain.ErrMintIndeterminate, dispatchErr.Error())
	}

	if releaseErr := s.ledger.Release(ctx, txHash); releaseErr != nil {
		logger.ErrorCtx(ctx, releaseErr, zap.String("txHash", txHash))
	}
	return dispatchErr
}

func isIndeterminate(err error) bool {
	return errors.Is(err, domain.ErrMintTimeout)
}
