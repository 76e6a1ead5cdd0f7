package model

import "github.com/shopspring/decimal"

type PriceHistory struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:true"`
	BillID    uint64 `gorm:"index"`
	OrderID   uint64 `gorm:"index"`
	Price     decimal.Decimal `gorm:"type:DECIMAL(24,4)"`
	CreatedAt int64 `gorm:"index"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}

// BenchmarkPrice is a single-row table holding the current median price.
type BenchmarkPrice struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Price decimal.Decimal `gorm:"type:DECIMAL(24,4)"`
}

func (BenchmarkPrice) TableName() string {
	return "benchmark_price"
}
