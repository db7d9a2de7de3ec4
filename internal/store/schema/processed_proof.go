package schema

import "time"

// ProofStatus is the lifecycle state of a consumed payment proof
type ProofStatus string

const (
	// ProofStatusInFlight marks a proof claimed by a request that has not
	// confirmed its mint yet. A row that stays in flight with a mint tx hash
	// recorded is the indeterminate-broadcast case.
	ProofStatusInFlight ProofStatus = "in_flight"

	// ProofStatusProcessed marks a proof consumed by a confirmed mint.
	// Terminal: processed rows are never released.
	ProofStatusProcessed ProofStatus = "processed"
)

// ProcessedProof records the consumption of one payment proof. The primary
// key makes the claim insert atomic: two requests for the same proof cannot
// both create the row.
type ProcessedProof struct {
	TxHash     string      `gorm:"primaryKey;type:text"`
	Status     ProofStatus `gorm:"type:text;not null"`
	Recipient  string      `gorm:"type:text"`
	MintTxHash string      `gorm:"type:text"`
	CreatedAt  time.Time   `gorm:"autoCreateTime"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime"`
}

func (ProcessedProof) TableName() string {
	return "processed_proofs"
}
