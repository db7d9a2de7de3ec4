package config_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletronCoreSkulls/apes2/internal/config"
	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MINT_GATEWAY_ETHEREUM_RPC_URL", "https://mainnet.base.org")
	t.Setenv("MINT_GATEWAY_PAYMENT_ASSET_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	t.Setenv("MINT_GATEWAY_PAYMENT_TREASURY_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("MINT_GATEWAY_PAYMENT_MIN_AMOUNT", "1000000")
	t.Setenv("MINT_GATEWAY_PAYMENT_RESOURCE", "nft-mint")
}

func TestLoadGatewayConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.LoadGatewayConfig("", "")

	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, domain.ChainBaseMainnet, cfg.Ethereum.ChainID)
	assert.Equal(t, "USDC", cfg.Payment.AssetSymbol)
	assert.Equal(t, uint64(10000), cfg.Payment.LookbackBlocks)
	assert.Equal(t, uint64(2000), cfg.Payment.ScanChunkBlocks)
	assert.Equal(t, 60*time.Second, cfg.Payment.RequestTimeout())
	assert.Equal(t, uint64(300000), cfg.Minter.GasLimit)
	assert.Equal(t, 90*time.Second, cfg.Minter.ConfirmTimeout)
}

func TestLoadGatewayConfig_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINT_GATEWAY_SERVER_PORT", "9090")
	t.Setenv("MINT_GATEWAY_ETHEREUM_CHAIN_ID", "eip155:84532")
	t.Setenv("MINT_GATEWAY_PAYMENT_LOOKBACK_BLOCKS", "500")
	t.Setenv("MINT_GATEWAY_DATABASE_HOST", "db.internal")

	cfg, err := config.LoadGatewayConfig("", "")

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, domain.ChainBaseSepolia, cfg.Ethereum.ChainID)
	assert.Equal(t, uint64(500), cfg.Payment.LookbackBlocks)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadGatewayConfig_MissingRPCURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINT_GATEWAY_ETHEREUM_RPC_URL", "")

	_, err := config.LoadGatewayConfig("", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ethereum.rpc_url")
}

func TestLoadGatewayConfig_UnsupportedChain(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINT_GATEWAY_ETHEREUM_CHAIN_ID", "eip155:999999")

	_, err := config.LoadGatewayConfig("", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain_id")
}

func TestLoadGatewayConfig_BadMinAmount(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINT_GATEWAY_PAYMENT_MIN_AMOUNT", "1.5 USDC")

	_, err := config.LoadGatewayConfig("", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_amount")
}

func TestLoadGatewayConfig_MinterCredentialsOptional(t *testing.T) {
	// Missing minter credentials must not refuse boot; the mint path
	// degrades at request time instead
	setRequiredEnv(t)

	cfg, err := config.LoadGatewayConfig("", "")

	require.NoError(t, err)
	assert.Empty(t, cfg.Minter.ContractAddress)
	assert.Empty(t, cfg.Minter.PrivateKey)
}

func TestMinAmountBig(t *testing.T) {
	c := config.PaymentConfig{MinAmount: "115792089237316195423570985008687907853269984665640564039457"}

	amount, err := c.MinAmountBig()

	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	assert.Equal(t, expected, amount)
}

func TestMinAmountBig_RejectsNegative(t *testing.T) {
	c := config.PaymentConfig{MinAmount: "-5"}

	_, err := c.MinAmountBig()

	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "gateway",
		Password: "secret",
		DBName:   "mints",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=localhost port=5432 user=gateway password=secret dbname=mints sslmode=disable", c.DSN())
}
