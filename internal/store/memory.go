package store

import (
	"context"
	"sync"
	"time"

	"github.com/SkeletronCoreSkulls/apes2/internal/store/schema"
)

// MemoryStore keeps the ledger in process memory. Used in tests and in
// deployments without a database; restarts forget consumed proofs, which is
// why the postgres store is the default for production.
type MemoryStore struct {
	mu     sync.Mutex
	proofs map[string]schema.ProcessedProof
}

// NewMemoryStore creates an in-memory idempotency ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proofs: make(map[string]schema.ProcessedProof)}
}

func (m *MemoryStore) Get(_ context.Context, txHash string) (*schema.ProcessedProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof, ok := m.proofs[txHash]
	if !ok {
		return nil, nil
	}
	return &proof, nil
}

func (m *MemoryStore) Begin(_ context.Context, txHash string) (bool, *schema.ProcessedProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.proofs[txHash]; ok {
		return false, &existing, nil
	}
	claim := schema.ProcessedProof{
		TxHash:    txHash,
		Status:    schema.ProofStatusInFlight,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.proofs[txHash] = claim
	return true, &claim, nil
}

func (m *MemoryStore) SetDispatched(_ context.Context, txHash string, mintTxHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof, ok := m.proofs[txHash]
	if !ok || proof.Status != schema.ProofStatusInFlight {
		return nil
	}
	proof.MintTxHash = mintTxHash
	proof.UpdatedAt = time.Now()
	m.proofs[txHash] = proof
	return nil
}

func (m *MemoryStore) Complete(_ context.Context, txHash string, recipient string, mintTxHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof, ok := m.proofs[txHash]
	if !ok {
		proof = schema.ProcessedProof{TxHash: txHash, CreatedAt: time.Now()}
	}
	proof.Status = schema.ProofStatusProcessed
	proof.Recipient = recipient
	proof.MintTxHash = mintTxHash
	proof.UpdatedAt = time.Now()
	m.proofs[txHash] = proof
	return nil
}

func (m *MemoryStore) Release(_ context.Context, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof, ok := m.proofs[txHash]
	if !ok || proof.Status != schema.ProofStatusInFlight {
		return nil
	}
	delete(m.proofs, txHash)
	return nil
}
