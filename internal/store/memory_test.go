package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletronCoreSkulls/apes2/internal/store"
	"github.com/SkeletronCoreSkulls/apes2/internal/store/schema"
)

const (
	testTxHash     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testRecipient  = "0x2222222222222222222222222222222222222222"
	testMintTxHash = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestMemoryStore_BeginClaimsUnknownProof(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	claimed, proof, err := s.Begin(ctx, testTxHash)

	require.NoError(t, err)
	assert.True(t, claimed)
	require.NotNil(t, proof)
	assert.Equal(t, schema.ProofStatusInFlight, proof.Status)
	assert.Equal(t, testTxHash, proof.TxHash)
}

func TestMemoryStore_SecondBeginLosesClaim(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	claimed, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, existing, err := s.Begin(ctx, testTxHash)

	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.Equal(t, schema.ProofStatusInFlight, existing.Status)
}

func TestMemoryStore_GetUnknownProof(t *testing.T) {
	s := store.NewMemoryStore()

	proof, err := s.Get(context.Background(), testTxHash)

	require.NoError(t, err)
	assert.Nil(t, proof)
}

func TestMemoryStore_SetDispatchedMarksInFlightClaim(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)

	require.NoError(t, s.SetDispatched(ctx, testTxHash, testMintTxHash))

	proof, err := s.Get(ctx, testTxHash)
	require.NoError(t, err)
	require.NotNil(t, proof)
	assert.Equal(t, schema.ProofStatusInFlight, proof.Status)
	assert.Equal(t, testMintTxHash, proof.MintTxHash)
}

func TestMemoryStore_SetDispatchedIgnoresProcessedProof(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, testTxHash, testRecipient, testMintTxHash))

	require.NoError(t, s.SetDispatched(ctx, testTxHash, "0xother"))

	proof, err := s.Get(ctx, testTxHash)
	require.NoError(t, err)
	assert.Equal(t, testMintTxHash, proof.MintTxHash)
}

func TestMemoryStore_CompleteIsTerminal(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, testTxHash, testRecipient, testMintTxHash))

	proof, err := s.Get(ctx, testTxHash)
	require.NoError(t, err)
	require.NotNil(t, proof)
	assert.Equal(t, schema.ProofStatusProcessed, proof.Status)
	assert.Equal(t, testRecipient, proof.Recipient)
	assert.Equal(t, testMintTxHash, proof.MintTxHash)

	// A processed proof never releases
	require.NoError(t, s.Release(ctx, testTxHash))
	proof, err = s.Get(ctx, testTxHash)
	require.NoError(t, err)
	require.NotNil(t, proof)
	assert.Equal(t, schema.ProofStatusProcessed, proof.Status)
}

func TestMemoryStore_ReleaseDropsInFlightClaim(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, testTxHash))

	proof, err := s.Get(ctx, testTxHash)
	require.NoError(t, err)
	assert.Nil(t, proof)

	// The proof is claimable again after release
	claimed, _, err := s.Begin(ctx, testTxHash)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStore_ConcurrentBeginSingleWinner(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	const workers = 50
	var wins int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			claimed, _, err := s.Begin(ctx, testTxHash)
			assert.NoError(t, err)
			if claimed {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}
