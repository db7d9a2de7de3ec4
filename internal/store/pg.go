package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SkeletronCoreSkulls/apes2/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a PostgreSQL-backed idempotency ledger
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates the processed-proof table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&schema.ProcessedProof{})
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values get reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

func (s *pgStore) Get(ctx context.Context, txHash string) (*schema.ProcessedProof, error) {
	var proof schema.ProcessedProof
	err := s.db.WithContext(ctx).First(&proof, "tx_hash = ?", txHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed proof: %w", err)
	}
	return &proof, nil
}

// Begin claims txHash with an insert-if-absent; the primary-key conflict
// clause makes concurrent claims race safely at the database.
func (s *pgStore) Begin(ctx context.Context, txHash string) (bool, *schema.ProcessedProof, error) {
	claim := schema.ProcessedProof{
		TxHash: txHash,
		Status: schema.ProofStatusInFlight,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Create(&claim)
	if result.Error != nil {
		return false, nil, fmt.Errorf("failed to claim proof: %w", result.Error)
	}

	if result.RowsAffected == 1 {
		return true, &claim, nil
	}

	existing, err := s.Get(ctx, txHash)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		// Row vanished between conflict and read; treat as a lost race.
		return false, &schema.ProcessedProof{TxHash: txHash, Status: schema.ProofStatusInFlight}, nil
	}
	return false, existing, nil
}

func (s *pgStore) SetDispatched(ctx context.Context, txHash string, mintTxHash string) error {
	err := s.db.WithContext(ctx).Model(&schema.ProcessedProof{}).
		Where("tx_hash = ? AND status = ?", txHash, schema.ProofStatusInFlight).
		Update("mint_tx_hash", mintTxHash).Error
	if err != nil {
		return fmt.Errorf("failed to record dispatched mint: %w", err)
	}
	return nil
}

func (s *pgStore) Complete(ctx context.Context, txHash string, recipient string, mintTxHash string) error {
	err := s.db.WithContext(ctx).Model(&schema.ProcessedProof{}).
		Where("tx_hash = ?", txHash).
		Updates(map[string]interface{}{
			"status":       schema.ProofStatusProcessed,
			"recipient":    recipient,
			"mint_tx_hash": mintTxHash,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to complete proof: %w", err)
	}
	return nil
}

func (s *pgStore) Release(ctx context.Context, txHash string) error {
	err := s.db.WithContext(ctx).
		Where("tx_hash = ? AND status = ?", txHash, schema.ProofStatusInFlight).
		Delete(&schema.ProcessedProof{}).Error
	if err != nil {
		return fmt.Errorf("failed to release proof: %w", err)
	}
	return nil
}
