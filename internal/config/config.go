package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// DatabaseConfig holds the processed-proof ledger database configuration.
// When Host is empty the gateway falls back to the in-memory ledger.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// EthereumConfig holds Ethereum RPC configuration
type EthereumConfig struct {
	RPCURL  string       `mapstructure:"rpc_url"`
	ChainID domain.Chain `mapstructure:"chain_id"`
}

// PaymentConfig holds the mint requirement: what must be paid, to whom, and
// how the offer is described to x402 clients. Read-only after process start.
type PaymentConfig struct {
	AssetAddress    string `mapstructure:"asset_address"`    // payment token contract (USDC)
	AssetSymbol     string `mapstructure:"asset_symbol"`     // e.g. "USDC"
	TreasuryAddress string `mapstructure:"treasury_address"` // payment destination
	MinAmount       string `mapstructure:"min_amount"`       // atomic units, string-encoded integer
	Resource        string `mapstructure:"resource"`         // resource identifier echoed by clients
	Description     string `mapstructure:"description"`
	MimeType        string `mapstructure:"mime_type"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`   // per-request timeout
	LookbackBlocks  uint64 `mapstructure:"lookback_blocks"`   // payment discovery window
	ScanChunkBlocks uint64 `mapstructure:"scan_chunk_blocks"` // blocks per concurrent scan query
}

// MinterConfig holds the privileged mint authority configuration
type MinterConfig struct {
	ContractAddress string        `mapstructure:"contract_address"`
	PrivateKey      string        `mapstructure:"private_key"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
}

// GatewayConfig holds configuration for the mint gateway service
type GatewayConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Ethereum   EthereumConfig `mapstructure:"ethereum"`
	Payment    PaymentConfig  `mapstructure:"payment"`
	Minter     MinterConfig   `mapstructure:"minter"`
}

// MinAmountBig parses the configured minimum into atomic units.
// Returns an error if the config value is not a base-10 integer.
func (c *PaymentConfig) MinAmountBig() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(c.MinAmount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid payment.min_amount: %q", c.MinAmount)
	}
	return amount, nil
}

// RequestTimeout returns the per-request timeout as a duration
func (c *PaymentConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// LoadGatewayConfig loads configuration for the mint gateway
func LoadGatewayConfig(configFile string, envPath string) (*GatewayConfig, error) {
	v := configureViper("gateway", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("ethereum.chain_id", "eip155:8453")
	v.SetDefault("payment.asset_symbol", "USDC")
	v.SetDefault("payment.mime_type", "application/json")
	v.SetDefault("payment.timeout_seconds", 60)
	v.SetDefault("payment.lookback_blocks", 10000)
	v.SetDefault("payment.scan_chunk_blocks", 2000)
	v.SetDefault("minter.gas_limit", 300000)
	v.SetDefault("minter.confirm_timeout", "90s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config GatewayConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate rejects configurations the read path cannot run with. Minter
// credentials are deliberately not required here: a missing signer degrades
// the POST path to a clean 500 instead of refusing to boot.
func (c *GatewayConfig) validate() error {
	if c.Ethereum.RPCURL == "" {
		return errors.New("ethereum.rpc_url is required")
	}
	if !domain.IsValidChain(c.Ethereum.ChainID) {
		return fmt.Errorf("unsupported ethereum.chain_id: %s", c.Ethereum.ChainID)
	}
	if c.Payment.AssetAddress == "" {
		return errors.New("payment.asset_address is required")
	}
	if c.Payment.TreasuryAddress == "" {
		return errors.New("payment.treasury_address is required")
	}
	if c.Payment.Resource == "" {
		return errors.New("payment.resource is required")
	}
	if _, err := c.Payment.MinAmountBig(); err != nil {
		return err
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("MINT_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields when no
// config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		// Payment
		"payment.asset_address",
		"payment.asset_symbol",
		"payment.treasury_address",
		"payment.min_amount",
		"payment.resource",
		"payment.description",
		"payment.mime_type",
		"payment.timeout_seconds",
		"payment.lookback_blocks",
		"payment.scan_chunk_blocks",
		// Minter
		"minter.contract_address",
		"minter.private_key",
		"minter.gas_limit",
		"minter.confirm_timeout",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}
