package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainBaseMainnet     Chain = "eip155:8453"
	ChainBaseSepolia     Chain = "eip155:84532"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainBaseMainnet ||
		chain == ChainBaseSepolia
}

// TransferEvent represents one ERC-20 Transfer log emitted by the payment
// asset contract, normalized from the raw log
type TransferEvent struct {
	Asset       string   `json:"asset"`        // token contract address
	From        string   `json:"from"`         // source address
	To          string   `json:"to"`           // destination address
	Value       *big.Int `json:"value"`        // amount in atomic units
	TxHash      string   `json:"tx_hash"`      // transaction hash
	BlockNumber uint64   `json:"block_number"` // block number
	LogIndex    uint     `json:"log_index"`    // log position within the block (for ordering)
}

// TransactionOutcome is the finalized result of a single ledger transaction:
// whether it landed, whether it executed successfully, and the payment-asset
// transfer events it emitted in log order
type TransactionOutcome struct {
	TxHash      string
	Finalized   bool
	Success     bool
	BlockNumber uint64
	Events      []TransferEvent
}

// PaymentRecord is derived from chain state on every verification and never
// persisted. Value is the sum of every qualifying transfer in the proof's
// transaction; Payer is the source of the first qualifying transfer in log
// order.
type PaymentRecord struct {
	Payer  string
	Asset  string
	Value  *big.Int
	TxHash string
}

// MintOutcome is the result of a successful mint dispatch
type MintOutcome struct {
	Recipient string
	Quantity  uint64
	TxHash    string // transaction hash of the mint itself
}

// SameAddress compares two hex addresses ignoring case and checksum
func SameAddress(a, b string) bool {
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex())
}
