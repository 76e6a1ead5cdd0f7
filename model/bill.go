package model

import "github.com/shopspring/decimal"

// Bill is a miner's standing offer of storage capacity at a price.
type Bill struct {
	BillID       uint64          `gorm:"primaryKey;autoIncrement:false"`
	Owner        string          `gorm:"index;type:varchar(255)"`
	Unmatched    decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	Matched      decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	Price        decimal.Decimal `gorm:"index;type:DECIMAL(24,4)"`
	// the engine clock owns both timestamps, gorm must not touch them
	CreatedAt    int64 `gorm:"autoCreateTime:false"`
	UpdatedAt    int64 `gorm:"autoUpdateTime:false"`
	ExpireOn     int64
	DepositRatio uint64
}

func (Bill) TableName() string {
	return "bill"
}
