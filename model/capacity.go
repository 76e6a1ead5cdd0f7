package model

import "github.com/shopspring/decimal"

// CapacityStat tracks the capacity credits a miner has issued and not yet
// consumed by finished orders. It is the denominator of the maker's rate.
type CapacityStat struct {
	Miner  string          `gorm:"primaryKey;type:varchar(255)"`
	Amount decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
}

func (CapacityStat) TableName() string {
	return "capacity_stat"
}
