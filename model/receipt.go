package model

import "github.com/shopspring/decimal"

type ReceiptType uint8

const (
	ReceiptAddReserve   ReceiptType = 1
	ReceiptSubReserve   ReceiptType = 2
	ReceiptDeposit      ReceiptType = 3
	ReceiptClaim        ReceiptType = 4
	ReceiptReward       ReceiptType = 5
	ReceiptRenew        ReceiptType = 6
	ReceiptChallengeReq ReceiptType = 7
	ReceiptChallengeAns ReceiptType = 8
	ReceiptChallengeArb ReceiptType = 9
	ReceiptChallengeRet ReceiptType = 10
	ReceiptLockRet      ReceiptType = 11
	ReceiptCancel       ReceiptType = 12
	ReceiptMinerLock    ReceiptType = 13
	ReceiptPenalty      ReceiptType = 14
	ReceiptIncentive    ReceiptType = 15
	ReceiptLiquidation  ReceiptType = 16
)

// OrderReceipt records one balance movement caused by a market action.
type OrderReceipt struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement:true"`
	OrderID  uint64          `gorm:"index"`
	Account  string          `gorm:"index;type:varchar(255)"`
	Symbol   string          `gorm:"type:varchar(8)"`
	Amount   decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	Type     ReceiptType
	ExecDate int64
}

func (OrderReceipt) TableName() string {
	return "order_receipt"
}
