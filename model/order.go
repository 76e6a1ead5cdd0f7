package model

import "github.com/shopspring/decimal"

type OrderState uint8

const (
	OrderStateWaiting   OrderState = 0
	OrderStateDeliver   OrderState = 1
	OrderStatePreEnd    OrderState = 2
	OrderStatePreCont   OrderState = 3
	OrderStateEnd       OrderState = 4
	OrderStateCancel    OrderState = 5
	OrderStatePreCancel OrderState = 6
)

// Order is one matched storage deal with its own escrow.
// All collateral columns are COL, capacity columns CAP, reward columns RWD.
type Order struct {
	OrderID uint64 `gorm:"primaryKey;autoIncrement:false"`
	User    string `gorm:"index;type:varchar(255)"`
	Miner   string `gorm:"index;type:varchar(255)"`
	BillID  uint64 `gorm:"index"`

	UserPledge          decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	MinerLockCapacity   decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	MinerLockCollateral decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	Price               decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	SettlementPledge    decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	LockPledge          decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	Deposit             decimal.Decimal `gorm:"type:DECIMAL(38,4)"`

	MinerLockReward decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	MinerReward     decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	UserReward      decimal.Decimal `gorm:"type:DECIMAL(38,4)"`

	State                OrderState `gorm:"index"`
	Epoch                uint64
	DeliverStartDate     int64
	LatestSettlementDate int64
	DepositValid         int64
	CancelDate           int64
}

func (Order) TableName() string {
	return "market_order"
}
