package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/SkeletronCoreSkulls/apes2/internal/adapter"
	"github.com/SkeletronCoreSkulls/apes2/internal/api/server"
	"github.com/SkeletronCoreSkulls/apes2/internal/checkout"
	"github.com/SkeletronCoreSkulls/apes2/internal/config"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
	"github.com/SkeletronCoreSkulls/apes2/internal/minter"
	"github.com/SkeletronCoreSkulls/apes2/internal/payment"
	ethereumProvider "github.com/SkeletronCoreSkulls/apes2/internal/providers/ethereum"
	"github.com/SkeletronCoreSkulls/apes2/internal/store"
	"github.com/SkeletronCoreSkulls/apes2/internal/x402"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadGatewayConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "mint-gateway",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting mint gateway")

	minAmount, err := cfg.Payment.MinAmountBig()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid payment configuration", zap.Error(err))
	}

	// Initialize the processed-proof ledger. Without a database host the
	// gateway runs on the in-memory ledger, which does not survive restarts.
	var ledger store.Store
	if cfg.Database.Host != "" {
		db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
		}
		if err := store.Migrate(db); err != nil {
			logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
		}
		if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
			logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
		}
		ledger = store.NewPGStore(db)
		logger.InfoCtx(ctx, "Connected to database", zap.String("host", cfg.Database.Host))
	} else {
		ledger = store.NewMemoryStore()
		logger.WarnCtx(ctx, "No database configured, using in-memory ledger")
	}

	// Connect to the Ethereum node
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Ethereum node", zap.Error(err))
	}
	defer ethClient.Close()
	logger.InfoCtx(ctx, "Connected to Ethereum node", zap.String("chain_id", string(cfg.Ethereum.ChainID)))

	reader := ethereumProvider.NewReader(cfg.Ethereum.ChainID, ethClient)

	requirement := payment.Requirement{
		AssetAddress:    cfg.Payment.AssetAddress,
		TreasuryAddress: cfg.Payment.TreasuryAddress,
		MinAmount:       minAmount,
	}
	verifier := payment.NewVerifier(reader, requirement)
	discovery := payment.NewDiscovery(reader, requirement, payment.DiscoveryConfig{
		LookbackBlocks:  cfg.Payment.LookbackBlocks,
		ScanChunkBlocks: cfg.Payment.ScanChunkBlocks,
	})
	defer discovery.Close()

	// The dispatcher needs minter credentials. When they are absent the
	// gateway still serves the payment-requirement document; only the mint
	// path refuses.
	var dispatcher minter.Dispatcher
	if cfg.Minter.ContractAddress != "" && cfg.Minter.PrivateKey != "" {
		dispatcher, err = minter.NewDispatcher(ctx, ethClient, minter.Config{
			ContractAddress: cfg.Minter.ContractAddress,
			PrivateKey:      cfg.Minter.PrivateKey,
			GasLimit:        cfg.Minter.GasLimit,
			ConfirmTimeout:  cfg.Minter.ConfirmTimeout,
		})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to initialize mint dispatcher", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Mint dispatcher ready", zap.String("signer", dispatcher.SignerAddress()))
	} else {
		logger.WarnCtx(ctx, "Minter credentials not configured, mint requests will fail")
	}

	service := checkout.NewService(verifier, discovery, ledger, dispatcher, cfg.Payment.RequestTimeout())

	document := x402.BuildPaymentRequired(x402.Offer{
		Network:           string(cfg.Ethereum.ChainID),
		MaxAmountRequired: cfg.Payment.MinAmount,
		Resource:          cfg.Payment.Resource,
		Description:       cfg.Payment.Description,
		MimeType:          cfg.Payment.MimeType,
		PayTo:             cfg.Payment.TreasuryAddress,
		MaxTimeoutSeconds: cfg.Payment.TimeoutSeconds,
		Asset:             cfg.Payment.AssetAddress,
		AssetSymbol:       cfg.Payment.AssetSymbol,
	})

	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	srv := server.New(serverConfig, service, document, cfg.Payment.Resource)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Mint gateway stopped")
}
