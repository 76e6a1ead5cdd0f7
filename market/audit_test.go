package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

func TestPhishingAuditTargetsAnotherOrder(t *testing.T) {
	env := newTestEnv(t)
	env.newMakerWithCapacity("m1", 2400, 2000)
	tree := buildTestTree(testBlocks)

	bill1 := env.placeStandardBill("m1")
	env.fund("u1", 100, ledger.Collateral)
	order1, err := env.engine.MatchOrder("u1", bill1, dec("0.1"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(100, ledger.Collateral))
	require.NoError(t, err)
	env.startDelivery(order1, tree, 4)

	bill2 := env.placeStandardBill("m1")
	env.fund("u2", 100, ledger.Collateral)
	order2, err := env.engine.MatchOrder("u2", bill2, dec("0.05"), PriceRangeNoLimit, 2,
		ledger.NewAsset(1000, ledger.Capacity), ledger.NewAsset(100, ledger.Collateral))
	require.NoError(t, err)
	require.NoError(t, env.engine.SubmitMerkleCommitment("u2", order2, tree.Root(), 4))
	require.NoError(t, env.engine.SubmitMerkleCommitment("m1", order2, tree.Root(), 4))

	require.NoError(t, env.engine.SetConfig("phishinter", 0))
	env.advance(10)
	require.NoError(t, env.engine.Tick(order1))

	// the audit skipped the ticked order and hit the other one
	require.Equal(t, model.ChallengeConsistent, env.getChallenge(order1).State)
	audited := env.getChallenge(order2)
	require.Equal(t, model.ChallengeRequest, audited.State)
	require.Equal(t, ledger.SystemAccount, audited.Challenger)
	require.Less(t, audited.DataID, uint64(4))
	require.NotEmpty(t, audited.Nonce)
	require.EqualValues(t, 1, audited.ChallengeTimes)
	// nothing was locked from the renter
	require.True(t, audited.UserLock.IsZero())
	require.True(t, env.getOrder(order2).UserPledge.Equal(dec("45")))

	// the honest miner clears itself through arbitration: the commitment is
	// unanswerable garbage, so the revealed data contradicts the challenger
	require.NoError(t, env.engine.Arbitrate("anyone", order2,
		testBlocks[audited.DataID], tree.Path(audited.DataID)))
	cleared := env.getChallenge(order2)
	require.Equal(t, model.ChallengeArbitrationUserPay, cleared.State)
	// the system challenger pays nothing
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).IsZero())
}
