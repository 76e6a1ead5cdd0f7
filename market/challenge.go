package market

import (
	"crypto/sha256"

	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/merkle"
	"github.com/cloudmall/storage_market/model"
)

// challengeSettled reports whether the challenge record lets delivery
// proceed: either no dispute is open or the last one is resolved.
func challengeSettled(state model.ChallengeState) bool {
	switch state {
	case model.ChallengeConsistent, model.ChallengeAnswer,
		model.ChallengeArbitrationMinerPay, model.ChallengeArbitrationUserPay:
		return true
	}
	return false
}

// challengeState derives the effective state: an unanswered request past
// its window reads as Timeout.
func (a *action) challengeState(c *model.Challenge) model.ChallengeState {
	if c.State == model.ChallengeRequest && c.ChallengeDate+a.cfg.ChallengeInterval <= a.now {
		return model.ChallengeTimeout
	}
	return c.State
}

// perUnitStake is 10% of the period price spread over the stored capacity.
func perUnitStake(order *model.Order) decimal.Decimal {
	return order.Price.Mul(decimal.New(1, -1)).Div(order.MinerLockCapacity)
}

// SubmitMerkleCommitment records one side's merkle root for the stored
// data. The first submission is provisional; when the counterparty echoes
// it exactly the commitment is confirmed, and on a fresh order delivery
// begins.
func (e *Engine) SubmitMerkleCommitment(sender string, orderID uint64, root merkle.Hash, blockCount uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if sender != order.User && sender != order.Miner {
			return preconditionErr("order doesn't belong to sender")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if challenge.State != model.ChallengePrepare && !challengeSettled(challenge.State) {
			return preconditionErr("invalid challenge state")
		}

		if challenge.MerkleSubmitter == sender || challenge.MerkleSubmitter == ledger.SystemAccount {
			challenge.PreMerkleRoot = root.Hex()
			challenge.PreBlockCount = blockCount
			challenge.MerkleSubmitter = sender
			return a.tx.Save(challenge).Error
		}

		if challenge.PreMerkleRoot != root.Hex() {
			return preconditionErr("merkle root mismatch")
		}
		if challenge.PreBlockCount != blockCount {
			return preconditionErr("block count mismatch")
		}
		fresh := challenge.State == model.ChallengePrepare
		if fresh {
			challenge.State = model.ChallengeConsistent
		}
		challenge.MerkleSubmitter = ledger.SystemAccount
		challenge.MerkleRoot = challenge.PreMerkleRoot
		challenge.BlockCount = challenge.PreBlockCount
		challenge.PreMerkleRoot = ""
		challenge.PreBlockCount = 0
		if err := a.tx.Save(challenge).Error; err != nil {
			return err
		}
		if fresh {
			if err := a.updateOrder(order, challenge); err != nil {
				return err
			}
			if err := a.tx.Save(order).Error; err != nil {
				return err
			}
			log.Infow("order delivery started", "order", orderID, "blocks", blockCount)
		}
		return nil
	})
}

// RequestChallenge opens a proof-of-storage dispute on one data block. The
// renter locks 100x the per-unit stake; a system audit locks nothing.
func (e *Engine) RequestChallenge(sender string, orderID uint64, dataID uint64, commitHash merkle.Hash, nonce string) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		return a.requestChallenge(sender, order, challenge, dataID, commitHash, nonce)
	})
}

func (a *action) requestChallenge(sender string, order *model.Order, challenge *model.Challenge, dataID uint64, commitHash merkle.Hash, nonce string) error {
	if sender != order.User && sender != ledger.SystemAccount {
		return preconditionErr("only user can request challenge")
	}
	if !challengeSettled(a.challengeState(challenge)) {
		return preconditionErr("invalid challenge state, cannot request")
	}
	if dataID >= challenge.BlockCount {
		return preconditionErr("invalid data number")
	}
	if err := a.updateOrder(order, challenge); err != nil {
		return err
	}
	switch order.State {
	case model.OrderStateDeliver, model.OrderStatePreEnd, model.OrderStatePreCont:
	default:
		return preconditionErr("order state is invalid, can't request challenge")
	}

	userLock := ledger.FloorDecimal(perUnitStake(order).Mul(decimal.New(100, 0)), ledger.Collateral)
	if sender == ledger.SystemAccount {
		userLock = ledger.Zero(ledger.Collateral)
	}
	if order.UserPledge.LessThan(userLock.Amount) {
		return preconditionErr("not enough pledge to challenge")
	}
	order.UserPledge = order.UserPledge.Sub(userLock.Amount)
	if err := a.tx.Save(order).Error; err != nil {
		return err
	}

	challenge.DataID = dataID
	challenge.CommitHash = commitHash.Hex()
	challenge.Nonce = nonce
	challenge.ChallengeTimes++
	challenge.State = model.ChallengeRequest
	challenge.ChallengeDate = a.now
	challenge.UserLock = challenge.UserLock.Add(userLock.Amount)
	challenge.Challenger = sender
	if userLock.IsPositive() {
		a.receipt(order.OrderID, order.User, userLock, model.ReceiptChallengeReq)
	}
	log.Infow("challenge requested", "order", order.OrderID, "block", dataID, "challenger", sender)
	return a.tx.Save(challenge).Error
}

// AnswerChallenge lets the miner settle an open dispute by revealing the
// pre-image of the challenger's commitment.
func (e *Engine) AnswerChallenge(sender string, orderID uint64, replyHash merkle.Hash) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if sender != order.Miner {
			return preconditionErr("only miner can reply proof")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if a.challengeState(challenge) != model.ChallengeRequest {
			return preconditionErr("invalid state, cannot reply")
		}
		if merkle.Hash(sha256.Sum256(replyHash[:])).Hex() != challenge.CommitHash {
			return preconditionErr("invalid reply hash data")
		}

		userPay := ledger.FloorDecimal(perUnitStake(order), ledger.Collateral)
		if challenge.Challenger == ledger.SystemAccount {
			userPay = ledger.Zero(ledger.Collateral)
		}
		returned := challenge.UserLock.Sub(userPay.Amount)
		order.UserPledge = order.UserPledge.Add(returned)
		if !returned.IsZero() {
			a.receipt(orderID, order.User,
				ledger.Asset{Amount: returned, Symbol: ledger.Collateral}, model.ReceiptChallengeAns)
		}
		if err := a.increasePenalty(userPay); err != nil {
			return err
		}

		challenge.State = model.ChallengeAnswer
		challenge.UserLock = decimal.Zero
		challenge.MinerPay = challenge.MinerPay.Add(userPay.Amount)
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if err := a.tx.Save(order).Error; err != nil {
			return err
		}
		return a.tx.Save(challenge).Error
	})
}

// Arbitrate resolves an open dispute with the raw block and its merkle
// path. A path that does not reach the committed root is rejected outright;
// otherwise whichever side the revealed data contradicts pays.
func (e *Engine) Arbitrate(sender string, orderID uint64, data []byte, path []merkle.Hash) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if a.challengeState(challenge) != model.ChallengeRequest {
			return preconditionErr("invalid state, cannot arbitrate")
		}
		root, ok := merkle.ParseHex(challenge.MerkleRoot)
		if !ok {
			return preconditionErr("order has no merkle commitment")
		}
		leaf := merkle.LeafHash(data)
		if !merkle.VerifyPath(leaf, challenge.DataID, path, root) {
			return preconditionErr("merkle root mismatch")
		}
		// the commitment is sha256(sha256(data||nonce))
		pre := sha256.Sum256(append(append([]byte{}, data...), challenge.Nonce...))
		commit := merkle.Hash(sha256.Sum256(pre[:]))

		per := perUnitStake(order)
		minerPay := ledger.FloorDecimal(per, ledger.Collateral)
		userPay := ledger.FloorDecimal(per.Mul(decimal.New(100, 0)), ledger.Collateral)
		if challenge.Challenger == ledger.SystemAccount {
			userPay = ledger.Zero(ledger.Collateral)
		}

		state := model.ChallengeArbitrationUserPay
		if commit.Hex() == challenge.CommitHash {
			// the challenge was legitimate, the miner bears the weight
			state = model.ChallengeArbitrationMinerPay
			minerPay, userPay = userPay, minerPay
		}

		returned := challenge.UserLock.Sub(userPay.Amount)
		order.UserPledge = order.UserPledge.Add(returned)
		if err := a.increasePenalty(userPay); err != nil {
			return err
		}
		if !returned.IsZero() {
			a.receipt(orderID, order.User,
				ledger.Asset{Amount: returned, Symbol: ledger.Collateral}, model.ReceiptChallengeArb)
		}

		challenge.State = state
		challenge.UserLock = decimal.Zero
		challenge.MinerPay = challenge.MinerPay.Add(minerPay.Amount)
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if err := a.tx.Save(order).Error; err != nil {
			return err
		}
		log.Infow("challenge arbitrated", "order", orderID, "state", state)
		return a.tx.Save(challenge).Error
	})
}

// PayOnTimeout closes an expired unanswered challenge against the miner:
// half the miner's lock goes to the penalty pool, the rest plus the
// deposit to the renter, and the order ends.
func (e *Engine) PayOnTimeout(sender string, orderID uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if challenge.State != model.ChallengeRequest {
			return preconditionErr("invalid state, can't pay challenge")
		}
		if challenge.ChallengeDate+a.cfg.ChallengeInterval > a.now {
			return preconditionErr("challenge hasn't expired yet")
		}

		minerLock := ledger.Asset{Amount: order.MinerLockCollateral, Symbol: ledger.Collateral}
		systemReward := minerLock.Half()
		if err := a.increasePenalty(systemReward); err != nil {
			return err
		}
		compensation := minerLock.Sub(systemReward)
		payout := compensation.Add(ledger.Asset{Amount: order.Deposit, Symbol: ledger.Collateral})
		if err := a.ledger.Credit(a.tx, order.User, payout); err != nil {
			return err
		}
		if order.Deposit.IsPositive() {
			a.receipt(orderID, order.User,
				ledger.Asset{Amount: order.Deposit, Symbol: ledger.Collateral}, model.ReceiptDeposit)
			order.Deposit = decimal.Zero
		}
		a.receipt(orderID, order.User, compensation, model.ReceiptPenalty)

		order.MinerLockCollateral = decimal.Zero
		order.LockPledge = order.LockPledge.Sub(order.Price)
		order.UserPledge = order.UserPledge.Add(challenge.UserLock).Add(order.Price)
		order.State = model.OrderStateEnd
		a.receipt(orderID, order.User,
			ledger.Asset{Amount: order.Price, Symbol: ledger.Collateral}, model.ReceiptLockRet)
		if challenge.UserLock.IsPositive() {
			a.receipt(orderID, order.User,
				ledger.Asset{Amount: challenge.UserLock, Symbol: ledger.Collateral}, model.ReceiptChallengeRet)
		}

		challenge.State = model.ChallengeTimeout
		challenge.UserLock = decimal.Zero

		if order.LockPledge.IsZero() && order.MinerLockReward.IsZero() &&
			order.MinerLockCollateral.IsZero() && order.SettlementPledge.IsZero() {
			return a.deleteOrder(order)
		}
		if err := a.tx.Save(order).Error; err != nil {
			return err
		}
		return a.tx.Save(challenge).Error
	})
}
