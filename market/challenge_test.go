package market

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/merkle"
	"github.com/cloudmall/storage_market/model"
)

var testBlocks = [][]byte{
	[]byte("block-0 contents"),
	[]byte("block-1 contents"),
	[]byte("block-2 contents"),
	[]byte("block-3 contents"),
}

func buildTestTree(blocks [][]byte) *merkle.Tree {
	leaves := make([]merkle.Hash, len(blocks))
	for i, b := range blocks {
		leaves[i] = merkle.LeafHash(b)
	}
	return merkle.BuildTree(leaves)
}

// startDelivery walks both parties through the merkle commitment so the
// order leaves Waiting.
func (env *testEnv) startDelivery(orderID uint64, tree *merkle.Tree, blocks uint64) {
	require.NoError(env.t, env.engine.SubmitMerkleCommitment("u1", orderID, tree.Root(), blocks))
	require.NoError(env.t, env.engine.SubmitMerkleCommitment("m1", orderID, tree.Root(), blocks))
}

// commitFor builds the challenge commitment sha256(sha256(block||nonce)).
func commitFor(block []byte, nonce string) (preimage merkle.Hash, commit merkle.Hash) {
	preimage = sha256.Sum256(append(append([]byte{}, block...), nonce...))
	commit = sha256.Sum256(preimage[:])
	return preimage, commit
}

func TestMerkleCommitmentStartsDelivery(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)

	env.startDelivery(orderID, tree, 4)

	order := env.getOrder(orderID)
	require.Equal(t, model.OrderStateDeliver, order.State)
	require.Equal(t, env.now(), order.DeliverStartDate)
	require.Equal(t, env.now(), order.LatestSettlementDate)
	require.Equal(t, env.now()+2*testClaims, order.DepositValid)

	challenge := env.getChallenge(orderID)
	require.Equal(t, model.ChallengeConsistent, challenge.State)
	require.Equal(t, tree.Root().Hex(), challenge.MerkleRoot)
	require.EqualValues(t, 4, challenge.BlockCount)
	require.Empty(t, challenge.PreMerkleRoot)
}

func TestMerkleCommitmentMismatch(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)

	require.NoError(t, env.engine.SubmitMerkleCommitment("u1", orderID, tree.Root(), 4))
	err := env.engine.SubmitMerkleCommitment("m1", orderID, merkle.LeafHash([]byte("other")), 4)
	require.ErrorIs(t, err, ErrPrecondition)

	err = env.engine.SubmitMerkleCommitment("stranger", orderID, tree.Root(), 4)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestRequestChallengeChecks(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)
	env.startDelivery(orderID, tree, 4)
	_, commit := commitFor(testBlocks[2], "n-1")

	require.ErrorIs(t,
		env.engine.RequestChallenge("m1", orderID, 2, commit, "n-1"), ErrPrecondition)
	require.ErrorIs(t,
		env.engine.RequestChallenge("u1", orderID, 4, commit, "n-1"), ErrPrecondition)
}

func TestAnswerChallenge(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)
	env.startDelivery(orderID, tree, 4)
	preimage, commit := commitFor(testBlocks[2], "n-1")

	env.advance(10)
	require.NoError(t, env.engine.RequestChallenge("u1", orderID, 2, commit, "n-1"))

	// per-unit stake 0.005, the renter locks 100x
	order := env.getOrder(orderID)
	require.True(t, order.UserPledge.Equal(dec("104.5")))
	challenge := env.getChallenge(orderID)
	require.Equal(t, model.ChallengeRequest, challenge.State)
	require.True(t, challenge.UserLock.Equal(dec("0.5")))
	require.EqualValues(t, 1, challenge.ChallengeTimes)
	require.Equal(t, "u1", challenge.Challenger)

	require.ErrorIs(t,
		env.engine.AnswerChallenge("m1", orderID, merkle.LeafHash([]byte("wrong"))), ErrPrecondition)
	require.NoError(t, env.engine.AnswerChallenge("m1", orderID, preimage))

	// the miner proved possession: the renter pays one unit, gets the rest back
	order = env.getOrder(orderID)
	require.True(t, order.UserPledge.Equal(dec("104.995")))
	challenge = env.getChallenge(orderID)
	require.Equal(t, model.ChallengeAnswer, challenge.State)
	require.True(t, challenge.UserLock.IsZero())
	require.True(t, challenge.MinerPay.Equal(dec("0.005")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("0.005")))
}

func TestArbitrateLegitimateChallenge(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)
	env.startDelivery(orderID, tree, 4)
	_, commit := commitFor(testBlocks[2], "n-1")

	env.advance(10)
	require.NoError(t, env.engine.RequestChallenge("u1", orderID, 2, commit, "n-1"))
	require.NoError(t, env.engine.Arbitrate("anyone", orderID, testBlocks[2], tree.Path(2)))

	// the commitment checks out, so the miner carries 100x
	challenge := env.getChallenge(orderID)
	require.Equal(t, model.ChallengeArbitrationMinerPay, challenge.State)
	require.True(t, challenge.MinerPay.Equal(dec("0.5")))
	require.True(t, challenge.UserLock.IsZero())
	order := env.getOrder(orderID)
	require.True(t, order.UserPledge.Equal(dec("104.995")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("0.005")))
}

func TestArbitrateBogusChallenge(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)
	env.startDelivery(orderID, tree, 4)

	env.advance(10)
	bogus := merkle.LeafHash([]byte("fabricated commitment"))
	require.NoError(t, env.engine.RequestChallenge("u1", orderID, 2, bogus, "n-1"))

	// data not on the committed tree is rejected outright
	require.ErrorIs(t,
		env.engine.Arbitrate("anyone", orderID, testBlocks[1], tree.Path(2)), ErrPrecondition)

	require.NoError(t, env.engine.Arbitrate("anyone", orderID, testBlocks[2], tree.Path(2)))

	// the data was fine, the renter forfeits the whole lock
	challenge := env.getChallenge(orderID)
	require.Equal(t, model.ChallengeArbitrationUserPay, challenge.State)
	require.True(t, challenge.MinerPay.Equal(dec("0.005")))
	order := env.getOrder(orderID)
	require.True(t, order.UserPledge.Equal(dec("104.5")))
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("0.5")))
}

func TestPayOnTimeout(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.matchStandardOrder("u1", 160)
	tree := buildTestTree(testBlocks)
	env.startDelivery(orderID, tree, 4)
	_, commit := commitFor(testBlocks[2], "n-1")
	require.NoError(t, env.engine.RequestChallenge("u1", orderID, 2, commit, "n-1"))

	require.ErrorIs(t, env.engine.PayOnTimeout("u1", orderID), ErrPrecondition)
	env.advance(testChallenge)
	require.NoError(t, env.engine.PayOnTimeout("u1", orderID))

	// half the miner lock is slashed, the rest plus deposit, lock, pledge
	// and the period price all land with the renter
	require.True(t, env.balance(ledger.PenaltyAccount, ledger.Collateral).Equal(dec("300")))
	require.True(t, env.balance("u1", ledger.Collateral).Equal(dec("460")))

	var count int64
	require.NoError(t, env.db.Model(&model.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, env.db.Model(&model.Challenge{}).Count(&count).Error)
	require.Zero(t, count)
}
