package payment

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
	"github.com/SkeletronCoreSkulls/apes2/internal/providers/ethereum"
)

// Requirement describes what counts as a valid payment: which asset, paid to
// which treasury, and the minimum amount in atomic units
type Requirement struct {
	AssetAddress    string
	TreasuryAddress string
	MinAmount       *big.Int
}

// Verifier decides whether a proof reference represents a valid, sufficient
// payment to the treasury. Verification is a pure function of chain state:
// it performs no mutation and is safe to call repeatedly.
type Verifier struct {
	reader      ethereum.Reader
	requirement Requirement
}

// NewVerifier creates a payment verifier backed by a ledger reader
func NewVerifier(reader ethereum.Reader, requirement Requirement) *Verifier {
	return &Verifier{reader: reader, requirement: requirement}
}

// Verify checks the transaction behind txHash and attributes the payment.
//
// The payment value is the sum of every transfer of the configured asset
// whose destination is the treasury; the payer is the source of the first
// such transfer in log order. A transaction carrying qualifying transfers
// from several sources therefore attributes the whole summed value to the
// first source. A stricter rule (single qualifying transfer per transaction)
// was considered and rejected to keep batched payments working; the
// tie-break is pinned by tests.
func (v *Verifier) Verify(ctx context.Context, txHash string) (*domain.PaymentRecord, error) {
	outcome, err := v.reader.TransactionOutcome(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if !outcome.Finalized {
		return nil, domain.ErrTransactionNotFound
	}
	if !outcome.Success {
		return nil, domain.ErrTransactionFailed
	}

	total := new(big.Int)
	payer := ""
	for _, event := range outcome.Events {
		if !domain.SameAddress(event.Asset, v.requirement.AssetAddress) {
			continue
		}
		if !domain.SameAddress(event.To, v.requirement.TreasuryAddress) {
			continue
		}
		// A transfer from the zero address is a token mint, not a payment;
		// it has no payer to attribute.
		if domain.SameAddress(event.From, domain.ETHEREUM_ZERO_ADDRESS) {
			continue
		}
		if payer == "" {
			payer = event.From
		}
		total.Add(total, event.Value)
	}

	if payer == "" {
		return nil, domain.ErrNoQualifyingTransfer
	}
	if total.Cmp(v.requirement.MinAmount) < 0 {
		return nil, fmt.Errorf("%w: got %s, need %s",
			domain.ErrInsufficientAmount, total.String(), v.requirement.MinAmount.String())
	}

	logger.InfoCtx(ctx, "Payment verified",
		zap.String("txHash", txHash),
		zap.String("payer", payer),
		zap.String("amount", total.String()))

	return &domain.PaymentRecord{
		Payer:  payer,
		Asset:  v.requirement.AssetAddress,
		Value:  total,
		TxHash: txHash,
	}, nil
}
