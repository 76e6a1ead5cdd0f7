package market

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/model"
)

const (
	daySec  = 24 * 3600
	weekSec = 7 * daySec

	// Baseline weight handed to the first stake in a maker pool.
	staticWeights = 10000.0

	// Fraction of a bill's value accrued as incentive per full window.
	incentiveRate = 0.1

	// Collateral redeemed from a pool stays locked this long.
	redeemLockSec = 3 * daySec

	// Makers scanned per liquidation pass.
	liquidationBatch = 20

	billIDKey  = "billid"
	orderIDKey = "orderid"
)

// Config is the immutable parameter snapshot one action runs under.
// Intervals are seconds; rates ending in "Rate" are percent*100 fixed
// point (1200 means 12.00).
type Config struct {
	ClaimsInterval     int64 // one billing period
	ServiceInterval    int64 // minimum remaining bill lifetime
	MinServiceDuration int64 // minimum total order duration
	ChallengeInterval  int64
	PhishingInterval   int64
	RateChangeInterval int64
	BillIncentiveSpan  int64 // window during which a bill accrues incentive

	BenchmarkStakeRate uint64
	LiquidationFactor  uint64 // percent of benchmark below which makers liquidate
	PenaltyRate        uint64 // percent of the shortfall charged as penalty

	BillScanLimit    int
	MaxPriceDistance int // distinct days of price history kept
	InitialPrice     decimal.Decimal
}

func defaultConfig() Config {
	return Config{
		ClaimsInterval:     weekSec,
		ServiceInterval:    24 * weekSec,
		MinServiceDuration: 24 * weekSec,
		ChallengeInterval:  daySec,
		PhishingInterval:   365 * daySec,
		RateChangeInterval: weekSec,
		BillIncentiveSpan:  weekSec,
		BenchmarkStakeRate: 1200,
		LiquidationFactor:  60,
		PenaltyRate:        30,
		BillScanLimit:      10,
		MaxPriceDistance:   7,
		InitialPrice:       decimal.New(1, -1),
	}
}

func loadConfig(tx *gorm.DB) (Config, error) {
	cfg := defaultConfig()
	var rows []model.MarketConfig
	if err := tx.Find(&rows).Error; err != nil {
		return cfg, err
	}
	for _, row := range rows {
		v := int64(row.Value)
		switch row.Key {
		case "claiminter":
			cfg.ClaimsInterval = v
		case "serverinter":
			cfg.ServiceInterval = v
		case "ordsrvepoch":
			cfg.MinServiceDuration = v
		case "challinter":
			cfg.ChallengeInterval = v
		case "phishinter":
			cfg.PhishingInterval = v
		case "rateinter":
			cfg.RateChangeInterval = v
		case "billinter":
			cfg.BillIncentiveSpan = v
		case "bmrate":
			cfg.BenchmarkStakeRate = row.Value
		case "liqfactor":
			cfg.LiquidationFactor = row.Value
		case "penaltyrate":
			cfg.PenaltyRate = row.Value
		case "billnumlimit":
			cfg.BillScanLimit = int(row.Value)
		case "pricedist":
			cfg.MaxPriceDistance = int(row.Value)
		case "initialprice":
			// stored as percent, e.g. 10 -> 0.10
			cfg.InitialPrice = decimal.New(v, -2)
		}
	}
	return cfg, nil
}

// SetConfig updates one mutable market parameter. Running actions keep the
// snapshot they started with.
func (e *Engine) SetConfig(key string, value uint64) error {
	return e.run(func(a *action) error {
		if key == "claiminter" && value == 0 {
			return validationErr("invalid claims interval")
		}
		var row model.MarketConfig
		err := a.tx.Where("`key` = ?", key).Take(&row).Error
		if err == gorm.ErrRecordNotFound {
			return a.tx.Create(&model.MarketConfig{Key: key, Value: value}).Error
		}
		if err != nil {
			return err
		}
		row.Value = value
		return a.tx.Save(&row).Error
	})
}
