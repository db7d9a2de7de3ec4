package store

import (
	"context"

	"github.com/SkeletronCoreSkulls/apes2/internal/store/schema"
)

// Store is the idempotency ledger: the set of payment proofs already
// consumed (or being consumed) by a mint. Begin is the critical-section
// primitive: it atomically claims a proof, so concurrent requests bearing
// the same transaction hash cannot both reach the dispatcher.
type Store interface {
	// Get returns the recorded state of a proof, or nil when unknown
	Get(ctx context.Context, txHash string) (*schema.ProcessedProof, error)

	// Begin claims txHash for the calling request. It returns claimed=true
	// and a fresh in-flight record when the proof was unknown; otherwise
	// claimed=false and the existing record.
	Begin(ctx context.Context, txHash string) (bool, *schema.ProcessedProof, error)

	// SetDispatched records the broadcast mint transaction on an in-flight
	// claim. Written before waiting for confirmation so a crash or timeout
	// leaves evidence of the broadcast.
	SetDispatched(ctx context.Context, txHash string, mintTxHash string) error

	// Complete marks the proof consumed by a confirmed mint. Terminal.
	Complete(ctx context.Context, txHash string, recipient string, mintTxHash string) error

	// Release drops an in-flight claim after a failure that provably
	// consumed nothing, so a corrected retry can run. Processed rows are
	// never released.
	Release(ctx context.Context, txHash string) error
}
