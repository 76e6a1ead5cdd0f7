package initdb

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/model"
)

var log = logging.Logger("initdb")

// defaults seeded into market_config; values are seconds or percent*100.
var defaultConfig = map[string]uint64{
	"claiminter":   7 * 24 * 3600,
	"serverinter":  24 * 7 * 24 * 3600,
	"ordsrvepoch":  24 * 7 * 24 * 3600,
	"challinter":   24 * 3600,
	"phishinter":   365 * 24 * 3600,
	"rateinter":    7 * 24 * 3600,
	"billinter":    7 * 24 * 3600,
	"bmrate":       1200,
	"liqfactor":    60,
	"penaltyrate":  30,
	"billnumlimit": 10,
	"pricedist":    7,
	"initialprice": 10, // percent, 0.10
	"billid":       1,
	"orderid":      1,
}

func InitDatabase(ctx context.Context, db *gorm.DB, rds *redis.Client) error {
	if checkExist(db) {
		return xerrors.New("database has been initialized")
	}

	if err := createTables(db); err != nil {
		return err
	}

	if err := fillTables(db); err != nil {
		return err
	}

	return initCache(ctx, rds)
}

func checkExist(db *gorm.DB) bool {
	return db.Migrator().HasTable(&model.MarketConfig{})
}

func createTables(db *gorm.DB) error {
	startTime := time.Now()
	defer func() {
		log.Infow("createTables", "duration", time.Since(startTime).String())
	}()

	return db.AutoMigrate(
		// 1. marketplace
		&model.Bill{},
		&model.Order{},
		&model.Challenge{},

		// 2. maker pools
		&model.Maker{},
		&model.MakerPool{},
		&model.MakerSnapshot{},
		&model.SnapshotLP{},
		&model.CapacityStat{},

		// 3. pricing
		&model.PriceHistory{},
		&model.BenchmarkPrice{},

		// 4. accounting
		&model.AccountBalance{},
		&model.LockedBalance{},
		&model.OrderReceipt{},

		// 5. other
		&model.MarketConfig{},
	)
}

func fillTables(db *gorm.DB) error {
	for key, value := range defaultConfig {
		if err := db.Create(&model.MarketConfig{Key: key, Value: value}).Error; err != nil {
			return err
		}
	}
	return nil
}

func initCache(ctx context.Context, rds *redis.Client) error {
	// a cold cache is fine, just make sure redis answers
	return rds.Ping(ctx).Err()
}
