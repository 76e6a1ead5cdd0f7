package market

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// test intervals are deliberately short so period replay is cheap
const (
	testClaims    = 700
	testChallenge = 100
)

type fixedSeeder uint64

func (s fixedSeeder) Seed() uint64 { return uint64(s) }

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	engine *Engine
	clock  *clock.Mock
	store  *ledger.Store
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Bill{}, &model.Order{}, &model.Challenge{},
		&model.Maker{}, &model.MakerPool{}, &model.MakerSnapshot{}, &model.SnapshotLP{},
		&model.CapacityStat{}, &model.PriceHistory{}, &model.BenchmarkPrice{},
		&model.AccountBalance{}, &model.LockedBalance{}, &model.OrderReceipt{},
		&model.MarketConfig{},
	))

	seed := map[string]uint64{
		"claiminter":   testClaims,
		"serverinter":  testClaims,
		"ordsrvepoch":  testClaims,
		"challinter":   testChallenge,
		"phishinter":   1 << 40, // audits off unless a test turns them on
		"rateinter":    100,
		"billinter":    testClaims,
		"bmrate":       1200,
		"liqfactor":    60,
		"penaltyrate":  30,
		"billnumlimit": 10,
		"pricedist":    7,
		"initialprice": 10,
		"billid":       1,
		"orderid":      1,
	}
	for k, v := range seed {
		require.NoError(t, db.Create(&model.MarketConfig{Key: k, Value: v}).Error)
	}

	mck := clock.NewMock()
	mck.Set(time.Unix(1700000000, 0))

	store := ledger.NewStore()
	engine := NewEngine(db, store, ledger.NewFixedRateSwapper(decimal.New(1, 0)),
		WithClock(mck), WithSeeder(fixedSeeder(1)))

	return &testEnv{t: t, db: db, engine: engine, clock: mck, store: store}
}

func (env *testEnv) fund(account string, amount int64, sym ledger.Symbol) {
	require.NoError(env.t, env.store.Credit(env.db, account, ledger.NewAsset(amount, sym)))
}

func (env *testEnv) balance(account string, sym ledger.Symbol) decimal.Decimal {
	b, err := env.store.Balance(env.db, account, sym)
	require.NoError(env.t, err)
	return b.Amount
}

func (env *testEnv) advance(seconds int64) {
	env.clock.Add(time.Duration(seconds) * time.Second)
}

func (env *testEnv) now() int64 {
	return env.clock.Now().Unix()
}

// newMakerWithCapacity walks a miner through stake -> mint so orders can
// be matched against it. Returns the maker's stake rate inputs.
func (env *testEnv) newMakerWithCapacity(miner string, staked, capacity int64) {
	env.fund(miner, staked, ledger.Collateral)
	require.NoError(env.t, env.engine.IncreaseStake(miner, ledger.NewAsset(staked, ledger.Collateral), miner))
	require.NoError(env.t, env.engine.MintCapacity(miner, ledger.NewAsset(capacity, ledger.Capacity)))
}

func (env *testEnv) getOrder(orderID uint64) *model.Order {
	var order model.Order
	require.NoError(env.t, env.db.Where("order_id = ?", orderID).Take(&order).Error)
	return &order
}

func (env *testEnv) getChallenge(orderID uint64) *model.Challenge {
	var challenge model.Challenge
	require.NoError(env.t, env.db.Where("order_id = ?", orderID).Take(&challenge).Error)
	return &challenge
}

func (env *testEnv) getMaker(miner string) *model.Maker {
	var maker model.Maker
	require.NoError(env.t, env.db.Where("miner = ?", miner).Take(&maker).Error)
	return &maker
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestConfigSnapshotDefaults(t *testing.T) {
	env := newTestEnv(t)

	cfg, err := loadConfig(env.db)
	require.NoError(t, err)
	require.EqualValues(t, testClaims, cfg.ClaimsInterval)
	require.EqualValues(t, 1200, cfg.BenchmarkStakeRate)
	require.True(t, cfg.InitialPrice.Equal(dec("0.1")))
}

func TestSetConfigRejectsZeroClaims(t *testing.T) {
	env := newTestEnv(t)

	require.Error(t, env.engine.SetConfig("claiminter", 0))
	require.NoError(t, env.engine.SetConfig("challinter", 200))
	cfg, err := loadConfig(env.db)
	require.NoError(t, err)
	require.EqualValues(t, 200, cfg.ChallengeInterval)
}
