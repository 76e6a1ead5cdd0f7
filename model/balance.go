package model

import "github.com/shopspring/decimal"

// AccountBalance backs the default gorm ledger implementation.
type AccountBalance struct {
	ID      uint64          `gorm:"primaryKey;autoIncrement:true"`
	Account string          `gorm:"uniqueIndex:idx_account_symbol;type:varchar(255)"`
	Symbol  string          `gorm:"uniqueIndex:idx_account_symbol;type:varchar(8)"`
	Amount  decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
}

func (AccountBalance) TableName() string {
	return "account_balance"
}

// LockedBalance is a time-locked bucket; funds become spendable once the
// wall clock passes Until.
type LockedBalance struct {
	ID      uint64          `gorm:"primaryKey;autoIncrement:true"`
	Account string          `gorm:"index;type:varchar(255)"`
	Symbol  string          `gorm:"type:varchar(8)"`
	Amount  decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	Until   int64
}

func (LockedBalance) TableName() string {
	return "locked_balance"
}
