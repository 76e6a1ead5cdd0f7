package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// weaken drops a maker's stake in place so its rate falls under the
// liquidation threshold (benchmark 1.2 * factor 60% = 0.72).
func (env *testEnv) weaken(miner string, staked int64, rate float64) {
	require.NoError(env.t, env.db.Model(&model.Maker{}).Where("miner = ?", miner).
		Updates(map[string]interface{}{
			"total_staked": decimal.New(staked, 0),
			"current_rate": rate,
		}).Error)
}

func TestLiquidateRecoversFreeCapacity(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	env.weaken("m1", 600, 0.6)

	require.NoError(t, env.engine.Liquidate())

	// shortfall 1 - 0.6/1.2 = 50%: 500 units clawed back, penalty
	// 600 * 50% * 30% = 90
	require.True(t, env.balance("m1", ledger.Capacity).Equal(dec("500")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("90")))

	maker := env.getMaker("m1")
	require.True(t, maker.TotalStaked.Equal(dec("510")))
	require.InDelta(t, 1.02, maker.CurrentRate, 1e-9)

	var stat model.CapacityStat
	require.NoError(t, env.db.Where("miner = ?", "m1").Take(&stat).Error)
	require.True(t, stat.Amount.Equal(dec("500")))

	var receipt model.OrderReceipt
	require.NoError(t, env.db.Where("type = ?", model.ReceiptLiquidation).Take(&receipt).Error)
	require.Equal(t, "m1", receipt.Account)
	require.True(t, receipt.Amount.Equal(dec("90")))
}

func TestLiquidateDrawsDownBills(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)
	billID := env.placeStandardBill("m1") // whole free balance goes on offer
	env.weaken("m1", 600, 0.6)

	require.NoError(t, env.engine.Liquidate())

	var bill model.Bill
	require.NoError(t, env.db.Where("bill_id = ?", billID).Take(&bill).Error)
	require.True(t, bill.Unmatched.Equal(dec("500")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("90")))
}

func TestLiquidateSkipsHealthyMakers(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 1200, 1000)

	require.NoError(t, env.engine.Liquidate())

	maker := env.getMaker("m1")
	require.True(t, maker.TotalStaked.Equal(dec("1200")))
	require.True(t, env.balance("m1", ledger.Capacity).Equal(dec("1000")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).IsZero())
}
