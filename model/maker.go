package model

import "github.com/shopspring/decimal"

// Maker is one miner's aggregate stake backing its issued capacity.
// Weights are kept as float64; they are never persisted as money.
type Maker struct {
	Miner              string  `gorm:"primaryKey;type:varchar(255)"`
	CurrentRate        float64 `gorm:"index"`
	MinerShareRate     float64
	TotalWeight        float64
	TotalStaked        decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	BenchmarkStakeRate uint64
	RateUpdatedAt      int64
}

func (Maker) TableName() string {
	return "maker"
}

// MakerPool is one contributor's weight in a miner's pool.
type MakerPool struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement:true"`
	Miner  string `gorm:"uniqueIndex:idx_pool_owner;type:varchar(255)"`
	Owner  string `gorm:"uniqueIndex:idx_pool_owner;type:varchar(255)"`
	Weight float64
}

func (MakerPool) TableName() string {
	return "maker_pool"
}

// MakerSnapshot freezes the pool's split ratios when an order is matched.
type MakerSnapshot struct {
	OrderID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Miner   string `gorm:"index;type:varchar(255)"`
	BillID  uint64
	Rate    uint64
}

func (MakerSnapshot) TableName() string {
	return "maker_snapshot"
}

type SnapshotLP struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement:true"`
	OrderID uint64 `gorm:"index"`
	Owner   string `gorm:"type:varchar(255)"`
	Ratio   float64
}

func (SnapshotLP) TableName() string {
	return "maker_snapshot_lp"
}
