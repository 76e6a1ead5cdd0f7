package market

import (
	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// snapshotRate reads the stake rate frozen at match time.
func (a *action) snapshotRate(orderID uint64) (uint64, error) {
	var snapshot model.MakerSnapshot
	if err := a.tx.Where("order_id = ?", orderID).Take(&snapshot).Error; err != nil {
		return 0, preconditionErr("cannot find maker snapshot for order %d", orderID)
	}
	return snapshot.Rate, nil
}

// settlementRewards computes one period's reward pair from the frozen rate:
// the renter's service reward and the miner's total including the stake bonus.
func settlementRewards(capacity decimal.Decimal, rate uint64) (ledger.Asset, ledger.Asset) {
	userReward := ledger.FromDecimal(capacity, ledger.Reward)
	minerTotal := ledger.FromDecimal(
		userReward.Amount.Mul(decimal.New(int64(100+rate), -2)), ledger.Reward)
	return userReward, minerTotal
}

// updateOrderAsset settles one elapsed period: half the period price moves
// from locked to claimable, rewards accrue half locked half claimable.
func (a *action) updateOrderAsset(order *model.Order, newState model.OrderState) error {
	rate, err := a.snapshotRate(order.OrderID)
	if err != nil {
		return err
	}
	userReward, minerTotal := settlementRewards(order.MinerLockCapacity, rate)
	pledge := ledger.Asset{Amount: order.Price, Symbol: ledger.Collateral}.Half()
	minerPledge := minerTotal.Half()

	order.LockPledge = order.LockPledge.Sub(pledge.Amount)
	order.SettlementPledge = order.SettlementPledge.Add(pledge.Amount)
	order.MinerLockReward = order.MinerLockReward.Add(minerTotal.Sub(minerPledge).Amount)
	order.MinerReward = order.MinerReward.Add(minerPledge.Amount)
	order.UserReward = order.UserReward.Add(userReward.Amount)
	order.State = newState
	order.LatestSettlementDate += a.cfg.ClaimsInterval
	return nil
}

// releaseMinerLock hands the order's remaining miner lock (and a stale
// deposit) to the pool split when the order winds down.
func (a *action) releaseMinerLock(order *model.Order) error {
	rewards := []rewardParcel{
		{ledger.Asset{Amount: order.MinerLockCollateral, Symbol: ledger.Collateral}, model.ReceiptMinerLock},
	}
	if order.Deposit.IsPositive() {
		deposit := ledger.Asset{Amount: order.Deposit, Symbol: ledger.Collateral}
		if order.DepositValid > order.LatestSettlementDate {
			// terminated early, the deposit is forfeit to the pool
			rewards = append(rewards, rewardParcel{deposit, model.ReceiptDeposit})
		} else {
			if err := a.ledger.Credit(a.tx, order.User, deposit); err != nil {
				return err
			}
			a.receipt(order.OrderID, order.User, deposit, model.ReceiptDeposit)
		}
	}
	if _, err := a.distributeLPPool(order.OrderID, rewards, ledger.Zero(ledger.Collateral)); err != nil {
		return err
	}
	order.MinerLockCollateral = decimal.Zero
	order.Deposit = decimal.Zero
	return nil
}

// changeOrder advances the order state machine by at most one step.
func (a *action) changeOrder(order *model.Order, challenge *model.Challenge) error {
	if !challengeSettled(challenge.State) && challenge.State != model.ChallengeTimeout {
		return nil
	}
	claims := a.cfg.ClaimsInterval

	switch order.State {
	case model.OrderStateWaiting:
		if challenge.State == model.ChallengeConsistent {
			order.State = model.OrderStateDeliver
			order.DeliverStartDate = a.now
			order.DepositValid = a.now + claims*int64(order.Epoch)
			order.LatestSettlementDate = a.now
		}

	case model.OrderStateDeliver:
		// renewal opens a day early so delivery never gaps
		perClaims := claims * 6 / 7
		if order.LatestSettlementDate+perClaims > a.now {
			return nil
		}
		if order.CancelDate != 0 && order.CancelDate+claims < a.now {
			order.State = model.OrderStatePreCancel
			return nil
		}
		price := ledger.Asset{Amount: order.Price, Symbol: ledger.Collateral}
		if order.UserPledge.GreaterThanOrEqual(order.Price) {
			order.UserPledge = order.UserPledge.Sub(order.Price)
			order.LockPledge = order.LockPledge.Add(order.Price)
			order.State = model.OrderStatePreCont
			a.receipt(order.OrderID, order.User, price, model.ReceiptRenew)
		} else {
			order.State = model.OrderStatePreEnd
		}

	case model.OrderStatePreCont:
		if order.LatestSettlementDate+claims > a.now {
			return nil
		}
		return a.updateOrderAsset(order, model.OrderStateDeliver)

	case model.OrderStatePreEnd:
		if order.LatestSettlementDate+claims > a.now {
			return nil
		}
		if err := a.updateOrderAsset(order, model.OrderStateEnd); err != nil {
			return err
		}
		return a.releaseMinerLock(order)

	case model.OrderStatePreCancel:
		if order.LatestSettlementDate+claims > a.now {
			return nil
		}
		if err := a.updateOrderAsset(order, model.OrderStateCancel); err != nil {
			return err
		}
		return a.releaseMinerLock(order)

	case model.OrderStateEnd, model.OrderStateCancel:
		// drain the remaining locked value one period at a time
		if order.LatestSettlementDate+claims > a.now {
			return nil
		}
		if order.LockPledge.IsZero() {
			return nil
		}
		rate, err := a.snapshotRate(order.OrderID)
		if err != nil {
			return err
		}
		_, minerTotal := settlementRewards(order.MinerLockCapacity, rate)
		pledge := ledger.Asset{Amount: order.Price, Symbol: ledger.Collateral}.Half()
		minerPledge := minerTotal.Half()

		if order.LockPledge.GreaterThanOrEqual(pledge.Amount) {
			order.LockPledge = order.LockPledge.Sub(pledge.Amount)
			order.SettlementPledge = order.SettlementPledge.Add(pledge.Amount)
			order.LatestSettlementDate += claims
		}
		if order.MinerLockReward.GreaterThanOrEqual(minerPledge.Amount) {
			order.MinerLockReward = order.MinerLockReward.Sub(minerPledge.Amount)
			order.MinerReward = order.MinerReward.Add(minerPledge.Amount)
		}
		if order.LockPledge.LessThan(pledge.Amount) {
			order.SettlementPledge = order.SettlementPledge.Add(order.LockPledge)
			order.LockPledge = decimal.Zero
			order.MinerReward = order.MinerReward.Add(order.MinerLockReward)
			order.MinerLockReward = decimal.Zero
		}
	}
	return nil
}

// updateOrder replays elapsed periods until the order catches up with the
// clock. A phishing audit may fire first; it targets a different order so
// it never interferes with the one in hand.
func (a *action) updateOrder(order *model.Order, challenge *model.Challenge) error {
	if err := a.phishingAudit(order.OrderID); err != nil {
		return err
	}
	// each step advances latestSettlementDate by a period or stops, so the
	// elapsed time bounds the loop
	maxSteps := int64(8)
	if order.LatestSettlementDate > 0 && a.now > order.LatestSettlementDate {
		maxSteps += (a.now - order.LatestSettlementDate) / a.cfg.ClaimsInterval
	}
	for i := int64(0); i <= maxSteps; i++ {
		prevState := order.State
		prevDate := order.LatestSettlementDate
		if err := a.changeOrder(order, challenge); err != nil {
			return err
		}
		if order.State == prevState && order.LatestSettlementDate == prevDate {
			return nil
		}
	}
	assert(false, "order replay did not converge")
	return nil
}

// deleteOrder removes a fully drained order with its challenge and snapshot,
// refunding whatever spendable pledge the renter still has.
func (a *action) deleteOrder(order *model.Order) error {
	if order.UserPledge.IsPositive() {
		refund := ledger.Asset{Amount: order.UserPledge, Symbol: ledger.Collateral}
		if err := a.ledger.Credit(a.tx, order.User, refund); err != nil {
			return err
		}
		a.receipt(order.OrderID, order.User, refund, model.ReceiptSubReserve)
		order.UserPledge = decimal.Zero
	}
	if err := a.tx.Delete(&model.Order{}, "order_id = ?", order.OrderID).Error; err != nil {
		return err
	}
	if err := a.tx.Delete(&model.Challenge{}, "order_id = ?", order.OrderID).Error; err != nil {
		return err
	}
	return a.deleteMakerSnapshot(order.OrderID)
}

func orderDrained(order *model.Order) bool {
	return (order.State == model.OrderStateEnd || order.State == model.OrderStateCancel) &&
		order.LockPledge.IsZero() && order.MinerLockReward.IsZero() &&
		order.Deposit.IsZero() && order.MinerLockCollateral.IsZero()
}

// Tick replays an order's elapsed periods. Anyone may call it; it only
// moves time forward.
func (e *Engine) Tick(orderID uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		return a.tx.Save(order).Error
	})
}

// ClaimDeposit returns the renter's deposit once the agreed service span
// has been settled through.
func (e *Engine) ClaimDeposit(sender string, orderID uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if !order.Deposit.IsPositive() {
			return preconditionErr("no deposit to claim")
		}
		if order.User != sender {
			return preconditionErr("only order user can claim deposit")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if order.DepositValid > order.LatestSettlementDate {
			return preconditionErr("order has not reached its agreed span")
		}
		deposit := ledger.Asset{Amount: order.Deposit, Symbol: ledger.Collateral}
		if err := a.ledger.Credit(a.tx, order.User, deposit); err != nil {
			return err
		}
		a.receipt(orderID, order.User, deposit, model.ReceiptDeposit)
		order.Deposit = decimal.Zero
		return a.tx.Save(order).Error
	})
}

// ClaimSettlement pays out everything claimable on the order: the renter's
// rewards directly, the miner's side through the pool split. A fully
// drained order is deleted.
func (e *Engine) ClaimSettlement(sender string, orderID uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if !order.SettlementPledge.IsPositive() {
			return preconditionErr("no settlement pledge to claim")
		}

		userReward, err := a.swap.Swap(a.tx,
			ledger.Asset{Amount: order.UserReward, Symbol: ledger.Reward}, ledger.Collateral)
		if err != nil {
			return err
		}
		if err := a.ledger.Credit(a.tx, order.User, userReward); err != nil {
			return err
		}
		a.receipt(orderID, order.User, userReward, model.ReceiptClaim)

		minerReward, err := a.swap.Swap(a.tx,
			ledger.Asset{Amount: order.MinerReward, Symbol: ledger.Reward}, ledger.Collateral)
		if err != nil {
			return err
		}
		remain, err := a.distributeLPPool(orderID, []rewardParcel{
			{ledger.Asset{Amount: order.SettlementPledge, Symbol: ledger.Collateral}, model.ReceiptClaim},
			{minerReward, model.ReceiptReward},
		}, ledger.Asset{Amount: challenge.MinerPay, Symbol: ledger.Collateral})
		if err != nil {
			return err
		}
		challenge.MinerPay = remain.Amount

		order.UserReward = decimal.Zero
		order.SettlementPledge = decimal.Zero
		order.MinerReward = decimal.Zero

		if order.DepositValid <= order.LatestSettlementDate && order.Deposit.IsPositive() {
			deposit := ledger.Asset{Amount: order.Deposit, Symbol: ledger.Collateral}
			if err := a.ledger.Credit(a.tx, order.User, deposit); err != nil {
				return err
			}
			a.receipt(orderID, order.User, deposit, model.ReceiptDeposit)
			order.Deposit = decimal.Zero
		}

		if orderDrained(order) {
			return a.deleteOrder(order)
		}
		if err := a.tx.Save(order).Error; err != nil {
			return err
		}
		return a.tx.Save(challenge).Error
	})
}

// CancelOrder cancels a waiting order immediately, or flags a delivering
// order so it winds down after its agreed span.
func (e *Engine) CancelOrder(sender string, orderID uint64) error {
	return e.run(func(a *action) error {
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if order.User != sender {
			return preconditionErr("only order user can cancel")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if !challengeSettled(challenge.State) && challenge.State != model.ChallengePrepare {
			return preconditionErr("invalid challenge state")
		}
		if order.CancelDate != 0 {
			return preconditionErr("can't duplicate cancel order")
		}

		switch order.State {
		case model.OrderStateWaiting:
			if challenge.State != model.ChallengePrepare {
				return preconditionErr("invalid challenge state")
			}
			order.State = model.OrderStateCancel
			challenge.State = model.ChallengeCancel
			if _, err := a.distributeLPPool(orderID, []rewardParcel{
				{ledger.Asset{Amount: order.MinerLockCollateral, Symbol: ledger.Collateral}, model.ReceiptMinerLock},
			}, ledger.Zero(ledger.Collateral)); err != nil {
				return err
			}
			refund := ledger.FromDecimal(
				order.LockPledge.Add(order.UserPledge).Add(order.Deposit), ledger.Collateral)
			if err := a.ledger.Credit(a.tx, order.User, refund); err != nil {
				return err
			}
			a.receipt(orderID, order.User, refund, model.ReceiptCancel)
			order.MinerLockCollateral = decimal.Zero
			order.LockPledge = decimal.Zero
			order.UserPledge = decimal.Zero
			order.Deposit = decimal.Zero
			order.CancelDate = a.now
			if err := a.tx.Delete(&model.Order{}, "order_id = ?", orderID).Error; err != nil {
				return err
			}
			if err := a.tx.Delete(&model.Challenge{}, "order_id = ?", orderID).Error; err != nil {
				return err
			}
			return a.deleteMakerSnapshot(orderID)

		case model.OrderStateDeliver, model.OrderStatePreCont:
			if order.DepositValid > a.now {
				return preconditionErr("agreed span not reached, can't cancel")
			}
			order.CancelDate = a.now
			if err := a.tx.Save(order).Error; err != nil {
				return err
			}
			return a.tx.Save(challenge).Error

		default:
			return preconditionErr("invalid cancel order state")
		}
	})
}
