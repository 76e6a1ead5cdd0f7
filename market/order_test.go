package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// placeStandardBill publishes the canonical test offer: 1000 CAP at 0.05
// with a 10% deposit ratio.
func (env *testEnv) placeStandardBill(miner string) uint64 {
	billID, err := env.engine.PlaceBill(miner, ledger.NewAsset(1000, ledger.Capacity),
		dec("0.05"), env.now()+1_000_000, 10)
	require.NoError(env.t, err)
	return billID
}

// matchStandardOrder sets up miner m1 (staked 1200, issued 1000) and matches
// the renter against the standard bill for two epochs.
func (env *testEnv) matchStandardOrder(user string, reserve int64) uint64 {
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID := env.placeStandardBill("m1")
	env.fund(user, reserve, ledger.Collateral)
	orderID, err := env.engine.MatchOrder(user, billID, dec("0.1"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(reserve, ledger.Collateral))
	require.NoError(env.t, err)
	return orderID
}

func TestMatchOrder(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 100)

	order := env.getOrder(orderID)
	require.Equal(t, "u1", order.User)
	require.Equal(t, "m1", order.Miner)
	require.Equal(t, model.OrderStateWaiting, order.State)
	require.EqualValues(t, 2, order.Epoch)
	// pay 50, deposit 5, the rest of the reserve stays spendable
	require.True(t, order.Price.Equal(dec("50")))
	require.True(t, order.LockPledge.Equal(dec("50")))
	require.True(t, order.Deposit.Equal(dec("5")))
	require.True(t, order.UserPledge.Equal(dec("45")))
	require.True(t, order.MinerLockCapacity.Equal(dec("1000")))
	require.True(t, order.MinerLockCollateral.Equal(dec("600")))
	require.True(t, env.balance("u1", ledger.Collateral).IsZero())

	// the bill was fully consumed
	var billCount int64
	require.NoError(t, env.db.Model(&model.Bill{}).Count(&billCount).Error)
	require.Zero(t, billCount)

	// stake rate 1.2 against benchmark 0.1 freezes at 1200
	var snapshot model.MakerSnapshot
	require.NoError(t, env.db.Where("order_id = ?", orderID).Take(&snapshot).Error)
	require.EqualValues(t, 1200, snapshot.Rate)

	maker := env.getMaker("m1")
	require.True(t, maker.TotalStaked.Equal(dec("600")))

	challenge := env.getChallenge(orderID)
	require.Equal(t, model.ChallengePrepare, challenge.State)

	// the matched price becomes the benchmark median
	var bench model.BenchmarkPrice
	require.NoError(t, env.db.Take(&bench).Error)
	require.True(t, bench.Price.Equal(dec("0.05")))
}

func TestMatchOrderRejectsSelf(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID := env.placeStandardBill("m1")

	_, err := env.engine.MatchOrder("m1", billID, dec("0.1"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(100, ledger.Collateral))
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestMatchOrderStaleBenchmark(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID := env.placeStandardBill("m1")

	_, err := env.engine.MatchOrder("u1", billID, dec("0.2"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(100, ledger.Collateral))
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestMatchOrderExpiredService(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID, err := env.engine.PlaceBill("m1", ledger.NewAsset(1000, ledger.Capacity),
		dec("0.05"), env.now()+testClaims, 10)
	require.NoError(t, err)

	env.fund("u1", 100, ledger.Collateral)
	// two epochs outlive the bill
	_, err = env.engine.MatchOrder("u1", billID, dec("0.1"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(100, ledger.Collateral))
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestMatchOrderInsufficientReserve(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID := env.placeStandardBill("m1")

	env.fund("u1", 54, ledger.Collateral)
	// pay 50 + deposit 5 exceed the reserve
	_, err := env.engine.MatchOrder("u1", billID, dec("0.1"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(54, ledger.Collateral))
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestOrderCollateralTopUp(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 100)

	env.fund("u1", 10, ledger.Collateral)
	require.NoError(t, env.engine.AddOrderCollateral("u1", orderID, ledger.NewAsset(10, ledger.Collateral)))
	require.True(t, env.getOrder(orderID).UserPledge.Equal(dec("55")))

	err := env.engine.RemoveOrderCollateral("u1", orderID, ledger.NewAsset(60, ledger.Collateral))
	require.ErrorIs(t, err, ErrPrecondition)

	require.NoError(t, env.engine.RemoveOrderCollateral("u1", orderID, ledger.NewAsset(30, ledger.Collateral)))
	require.True(t, env.getOrder(orderID).UserPledge.Equal(dec("25")))
	require.True(t, env.balance("u1", ledger.Collateral).Equal(dec("30")))
}

func TestCancelWaitingOrder(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 100)

	require.ErrorIs(t, env.engine.CancelOrder("intruder", orderID), ErrPrecondition)
	require.NoError(t, env.engine.CancelOrder("u1", orderID))

	// the whole reserve comes back, the miner lock returns to the pool
	require.True(t, env.balance("u1", ledger.Collateral).Equal(dec("100")))
	maker := env.getMaker("m1")
	require.True(t, maker.TotalStaked.Equal(dec("1200")))

	var count int64
	require.NoError(t, env.db.Model(&model.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, env.db.Model(&model.Challenge{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, env.db.Model(&model.MakerSnapshot{}).Count(&count).Error)
	require.Zero(t, count)
}
