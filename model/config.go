package model

// MarketConfig is the mutable market parameter table, one row per key.
type MarketConfig struct {
	Key   string `gorm:"primaryKey;type:varchar(64)"`
	Value uint64
}

func (MarketConfig) TableName() string {
	return "market_config"
}
