package minter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/adapter"
	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
)

const receiptPollInterval = 2 * time.Second

// ownerMintABI covers the two contract entry points the dispatcher touches:
// the owner() view used for the authority pre-check and the privileged mint.
const ownerMintABI = `[
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"quantity","type":"uint256"}],"name":"mint","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

// BroadcastHook is invoked with the mint transaction hash immediately after
// a successful broadcast, before the dispatcher starts waiting for
// confirmation. Callers use it to persist the in-flight marker that detects
// the indeterminate-broadcast case.
type BroadcastHook func(mintTxHash string)

// Dispatcher holds the authority to trigger the privileged mint. Dispatch is
// NOT idempotent: calling it twice mints twice. Every call must be gated by
// the idempotency ledger.
//
//go:generate mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks -mock_names=Dispatcher=MockDispatcher
type Dispatcher interface {
	// Dispatch pre-checks the signing authority against the contract's
	// recorded owner, issues the mint call, and blocks until the ledger
	// confirms it. Fails with *domain.AuthorityMismatchError,
	// domain.ErrMintReverted, or domain.ErrMintTimeout.
	Dispatch(ctx context.Context, recipient string, quantity uint64, onBroadcast BroadcastHook) (*domain.MintOutcome, error)

	// SignerAddress returns the address of the configured signing key
	SignerAddress() string
}

// Config holds the dispatcher configuration
type Config struct {
	ContractAddress string
	PrivateKey      string
	GasLimit        uint64
	ConfirmTimeout  time.Duration
}

type dispatcher struct {
	client   adapter.EthClient
	config   Config
	key      *ecdsa.PrivateKey
	signer   common.Address
	contract common.Address
	chainID  *big.Int
	abi      abi.ABI
}

// NewDispatcher creates a mint dispatcher from the configured signing key
func NewDispatcher(ctx context.Context, client adapter.EthClient, cfg Config) (Dispatcher, error) {
	if cfg.ContractAddress == "" {
		return nil, errors.New("contract address is required")
	}
	if cfg.PrivateKey == "" {
		return nil, errors.New("signing key is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(ownerMintABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	return &dispatcher{
		client:   client,
		config:   cfg,
		key:      key,
		signer:   crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  chainID,
		abi:      parsedABI,
	}, nil
}

// SignerAddress returns the address of the configured signing key
func (d *dispatcher) SignerAddress() string {
	return d.signer.Hex()
}

// Dispatch mints `quantity` tokens to `recipient`
func (d *dispatcher) Dispatch(ctx context.Context, recipient string, quantity uint64, onBroadcast BroadcastHook) (*domain.MintOutcome, error) {
	if quantity == 0 {
		return nil, errors.New("quantity must be at least 1")
	}
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("invalid recipient address: %s", recipient)
	}

	// Authority can change via administrative action between dispatches, so
	// the owner is read fresh every time, never cached.
	if err := d.checkAuthority(ctx); err != nil {
		return nil, err
	}

	signedTx, err := d.buildMintTx(ctx, common.HexToAddress(recipient), quantity)
	if err != nil {
		return nil, err
	}

	if err := d.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to broadcast mint: %w", err)
	}

	mintTxHash := signedTx.Hash().Hex()
	if onBroadcast != nil {
		onBroadcast(mintTxHash)
	}

	logger.InfoCtx(ctx, "Mint broadcast",
		zap.String("recipient", recipient),
		zap.Uint64("quantity", quantity),
		zap.String("mintTxHash", mintTxHash))

	receipt, err := d.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: mint tx %s", domain.ErrMintTimeout, mintTxHash)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: mint tx %s", domain.ErrMintReverted, mintTxHash)
	}

	return &domain.MintOutcome{
		Recipient: common.HexToAddress(recipient).Hex(),
		Quantity:  quantity,
		TxHash:    mintTxHash,
	}, nil
}

// checkAuthority compares the configured signer against the contract's
// recorded owner
func (d *dispatcher) checkAuthority(ctx context.Context) error {
	data, err := d.abi.Pack("owner")
	if err != nil {
		return fmt.Errorf("failed to pack data: %w", err)
	}

	result, err := d.client.CallContract(ctx, ethereum.CallMsg{
		To:   &d.contract,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to read contract owner: %w", err)
	}

	var owner common.Address
	if err := d.abi.UnpackIntoInterface(&owner, "owner", result); err != nil {
		return fmt.Errorf("failed to unpack result: %w", err)
	}

	if owner != d.signer {
		return &domain.AuthorityMismatchError{
			Expected: owner.Hex(),
			Actual:   d.signer.Hex(),
		}
	}
	return nil
}

// buildMintTx packs, prices, and signs the mint call
func (d *dispatcher) buildMintTx(ctx context.Context, recipient common.Address, quantity uint64) (*types.Transaction, error) {
	data, err := d.abi.Pack("mint", recipient, new(big.Int).SetUint64(quantity))
	if err != nil {
		return nil, fmt.Errorf("failed to pack data: %w", err)
	}

	nonce, err := d.client.PendingNonceAt(ctx, d.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := d.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &d.contract,
		Gas:      d.config.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(d.chainID), d.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign mint: %w", err)
	}
	return signedTx, nil
}

// waitForReceipt polls until the mint is mined or the confirmation timeout
// elapses
func (d *dispatcher) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, d.config.ConfirmTimeout)
	defer cancel()

	var receipt *types.Receipt
	operation := func() error {
		var err error
		receipt, err = d.client.TransactionReceipt(waitCtx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return err // not mined yet, keep polling
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(receiptPollInterval), waitCtx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return receipt, nil
}
