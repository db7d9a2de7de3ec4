package payment

import (
	"context"
	"sort"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
	"github.com/SkeletronCoreSkulls/apes2/internal/providers/ethereum"
)

const discoveryScanConcurrency = 4

// DiscoveryConfig bounds the search window. LookbackBlocks caps scan cost,
// it does not guarantee completeness; proof-based verification is always
// preferred when the caller supplies a transaction hash.
type DiscoveryConfig struct {
	LookbackBlocks  uint64
	ScanChunkBlocks uint64
}

// Discovery finds a payer's latest qualifying payment inside a bounded
// recent block window
type Discovery struct {
	reader      ethereum.Reader
	requirement Requirement
	config      DiscoveryConfig
	pool        pond.ResultPool[[]domain.TransferEvent]
}

// NewDiscovery creates a payment discovery service with a bounded scan pool
func NewDiscovery(reader ethereum.Reader, requirement Requirement, cfg DiscoveryConfig) *Discovery {
	if cfg.ScanChunkBlocks == 0 {
		cfg.ScanChunkBlocks = 2000
	}
	return &Discovery{
		reader:      reader,
		requirement: requirement,
		config:      cfg,
		pool:        pond.NewResultPool[[]domain.TransferEvent](discoveryScanConcurrency),
	}
}

// FindLatestPayment scans the lookback window for transfers of the
// configured asset from payer to the treasury and returns the transaction
// hash of the most recent one. Fails with domain.ErrNoRecentPayment when the
// window holds none.
func (d *Discovery) FindLatestPayment(ctx context.Context, payer string) (string, error) {
	head, err := d.reader.CurrentHeight(ctx)
	if err != nil {
		return "", err
	}

	fromBlock := uint64(0)
	if head > d.config.LookbackBlocks {
		fromBlock = head - d.config.LookbackBlocks
	}

	// Chunk the window and scan concurrently; the node caps results per
	// query, so bounded ranges keep each query small.
	group := d.pool.NewGroup()
	for start := fromBlock; start <= head; start += d.config.ScanChunkBlocks {
		end := start + d.config.ScanChunkBlocks - 1
		if end > head {
			end = head
		}
		chunkFrom, chunkTo := start, end
		group.SubmitErr(func() ([]domain.TransferEvent, error) {
			return d.reader.ScanTransferEvents(ctx, d.requirement.AssetAddress, chunkFrom, chunkTo, ethereum.TransferFilter{
				From: payer,
				To:   d.requirement.TreasuryAddress,
			})
		})
	}

	results, err := group.Wait()
	if err != nil {
		return "", err
	}

	var events []domain.TransferEvent
	for _, chunk := range results {
		events = append(events, chunk...)
	}
	if len(events) == 0 {
		return "", domain.ErrNoRecentPayment
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	latest := events[len(events)-1]
	logger.InfoCtx(ctx, "Discovered recent payment",
		zap.String("payer", payer),
		zap.String("txHash", latest.TxHash),
		zap.Uint64("block", latest.BlockNumber))

	return latest.TxHash, nil
}

// Close stops the scan pool
func (d *Discovery) Close() {
	_ = d.pool.Stop()
}
