package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/adapter"
	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
)

// Event signatures
var (
	// Transfer event signature - shared by ERC20 and ERC721
	// ERC20: Transfer(address indexed from, address indexed to, uint256 value) - 3 topics, value in data
	// ERC721: Transfer(address indexed from, address indexed to, uint256 indexed tokenId) - 4 topics
	transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// TransferFilter restricts a log scan on the indexed Transfer parameters.
// Empty fields match any address.
type TransferFilter struct {
	From string
	To   string
}

// Reader provides read-only access to the ledger: transaction outcomes,
// current height, and bounded transfer-event scans. It never retries
// internally; callers decide retry policy.
//
//go:generate mockgen -source=client.go -destination=../../mocks/chainreader.go -package=mocks -mock_names=Reader=MockReader
type Reader interface {
	// TransactionOutcome fetches a transaction's finalized outcome and its
	// ERC-20 transfer events in log order. Returns
	// domain.ErrTransactionNotFound when the node has no receipt; callers
	// must not assume absence means failure, it may mean not-yet-finalized.
	TransactionOutcome(ctx context.Context, txHash string) (*domain.TransactionOutcome, error)

	// CurrentHeight returns the most recent block number
	CurrentHeight(ctx context.Context) (uint64, error)

	// ScanTransferEvents retrieves the asset's Transfer events in
	// [fromBlock, toBlock], restricted by the filter's indexed parameters,
	// ordered ascending by (block, log index)
	ScanTransferEvents(ctx context.Context, asset string, fromBlock, toBlock uint64, filter TransferFilter) ([]domain.TransferEvent, error)

	// Close closes the connection
	Close()
}

type ethereumReader struct {
	chainID domain.Chain
	client  adapter.EthClient
}

// NewReader creates a ledger reader on top of an Ethereum RPC client
func NewReader(chainID domain.Chain, client adapter.EthClient) Reader {
	return &ethereumReader{chainID: chainID, client: client}
}

// TransactionOutcome fetches the receipt for txHash and normalizes its ERC-20
// transfer logs
func (r *ethereumReader) TransactionOutcome(ctx context.Context, txHash string) (*domain.TransactionOutcome, error) {
	receipt, err := r.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	outcome := &domain.TransactionOutcome{
		TxHash:    txHash,
		Finalized: receipt.BlockNumber != nil,
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
	}

	// Receipt logs arrive in on-ledger order; keep that order so payer
	// attribution stays deterministic.
	for _, vLog := range receipt.Logs {
		if vLog == nil {
			continue
		}
		event, ok := parseTransferLog(*vLog)
		if !ok {
			continue
		}
		outcome.Events = append(outcome.Events, event)
	}

	return outcome, nil
}

// CurrentHeight returns the most recent block number
func (r *ethereumReader) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}
	return height, nil
}

// ScanTransferEvents runs a topic-filtered log query over a bounded range
func (r *ethereumReader) ScanTransferEvents(ctx context.Context, asset string, fromBlock, toBlock uint64, filter TransferFilter) ([]domain.TransferEvent, error) {
	topics := [][]common.Hash{
		{transferEventSignature},
	}

	// Indexed parameters: topic[1] = from, topic[2] = to
	var fromTopic, toTopic []common.Hash
	if filter.From != "" {
		fromTopic = []common.Hash{common.BytesToHash(common.HexToAddress(filter.From).Bytes())}
	}
	if filter.To != "" {
		toTopic = []common.Hash{common.BytesToHash(common.HexToAddress(filter.To).Bytes())}
	}
	if fromTopic != nil || toTopic != nil {
		topics = append(topics, fromTopic)
	}
	if toTopic != nil {
		topics = append(topics, toTopic)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(asset)},
		Topics:    topics,
	}

	logs, err := r.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs for range %d-%d: %w", fromBlock, toBlock, err)
	}

	events := make([]domain.TransferEvent, 0, len(logs))
	for _, vLog := range logs {
		event, ok := parseTransferLog(vLog)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// Close closes the connection
func (r *ethereumReader) Close() {
	r.client.Close()
}

// parseTransferLog normalizes an ERC-20 Transfer log. Logs with a different
// signature, an ERC-721 topic layout, or malformed data are skipped.
func parseTransferLog(vLog types.Log) (domain.TransferEvent, bool) {
	if len(vLog.Topics) == 0 || vLog.Topics[0] != transferEventSignature {
		return domain.TransferEvent{}, false
	}

	// ERC721 shares the signature but indexes the token id as topic[3];
	// only the 3-topic ERC20 layout carries a value in data.
	if len(vLog.Topics) != 3 {
		return domain.TransferEvent{}, false
	}
	if len(vLog.Data) < 32 {
		logger.Warn("Invalid ERC20 Transfer event: insufficient data",
			zap.String("txHash", vLog.TxHash.Hex()),
			zap.String("contract", vLog.Address.Hex()))
		return domain.TransferEvent{}, false
	}

	return domain.TransferEvent{
		Asset:       vLog.Address.Hex(),
		From:        common.BytesToAddress(vLog.Topics[1].Bytes()).Hex(),
		To:          common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
		Value:       new(big.Int).SetBytes(vLog.Data[0:32]),
		TxHash:      vLog.TxHash.Hex(),
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
	}, true
}
