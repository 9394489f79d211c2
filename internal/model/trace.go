package model

import "time"

// TraceStages is the canonical seed-to-sale order of traceability stages
var TraceStages = []string{
	"cultivation",
	"harvest",
	"lab_testing",
	"curing",
	"packaging",
	"distribution",
	"dispensary",
}

// StageIndex returns the position of stage in TraceStages, or -1
func StageIndex(stage string) int {
	for i, s := range TraceStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// GenesisHash is the previous hash of the first event of a product
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// TraceEvent is one hash-chained step in a product's supply chain
type TraceEvent struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"not null;index"`
	ProductID  uint      `json:"product_id" gorm:"not null;uniqueIndex:idx_trace_product_seq"`
	Sequence   int       `json:"sequence" gorm:"not null;uniqueIndex:idx_trace_product_seq"`
	Stage      string    `json:"stage" gorm:"type:varchar(32);not null"`
	Location   string    `json:"location" gorm:"type:varchar(255)"`
	Details    string    `json:"details" gorm:"type:text"`
	RecordedAt time.Time `json:"recorded_at"`
	PrevHash   string    `json:"prev_hash" gorm:"type:char(64);not null"`
	Hash       string    `json:"hash" gorm:"type:char(64);not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TraceVerification is the result of re-hashing a product's chain
type TraceVerification struct {
	Verified bool `json:"verified"`
	Events   int  `json:"events"`
	BrokenAt *int `json:"broken_at,omitempty"`
}
