package market

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

type PriceRange uint8

const (
	PriceRangeTwenty  PriceRange = 1
	PriceRangeThirty  PriceRange = 2
	PriceRangeNoLimit PriceRange = 3
)

func (r PriceRange) percent() (uint64, bool) {
	switch r {
	case PriceRangeTwenty:
		return 20, true
	case PriceRangeThirty:
		return 30, true
	case PriceRangeNoLimit:
		return 100, true
	}
	return 0, false
}

func (a *action) getOrder(orderID uint64) (*model.Order, error) {
	var order model.Order
	err := forUpdate(a.tx).
		Where("order_id = ?", orderID).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, preconditionErr("no such order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *action) getChallenge(orderID uint64) (*model.Challenge, error) {
	var challenge model.Challenge
	err := forUpdate(a.tx).
		Where("order_id = ?", orderID).Take(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, preconditionErr("no challenge for order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// MatchOrder matches the renter's request against an open bill and opens
// the order/challenge pair. The whole match is atomic.
func (e *Engine) MatchOrder(user string, billID uint64, refPrice decimal.Decimal, priceRange PriceRange, epoch uint64, capacity ledger.Asset, reserve ledger.Asset) (uint64, error) {
	var orderID uint64
	err := e.run(func(a *action) error {
		rangePct, ok := priceRange.percent()
		if !ok {
			return validationErr("invalid price range")
		}
		if !refPrice.IsPositive() {
			return validationErr("invalid benchmark price")
		}
		if epoch == 0 {
			return validationErr("invalid epoch")
		}
		if capacity.Symbol != ledger.Capacity || !capacity.IsPositive() {
			return validationErr("must order a positive capacity amount")
		}
		if reserve.Symbol != ledger.Collateral || reserve.IsNegative() {
			return validationErr("invalid reserve")
		}

		// stale-price protection: the renter's view of the benchmark must
		// be within 5% of the current one
		current, err := a.benchmarkPrice()
		if err != nil {
			return err
		}
		hundred := decimal.New(100, 0)
		if current.GreaterThan(refPrice.Mul(decimal.New(105, -2))) ||
			current.LessThan(refPrice.Mul(decimal.New(95, -2))) {
			return preconditionErr("current price is not in benchmark price range")
		}

		lower := refPrice.Mul(decimal.New(int64(100-rangePct), 0)).Div(hundred)
		var upper decimal.Decimal
		bounded := rangePct != 100
		if bounded {
			upper = refPrice.Mul(decimal.New(int64(100+rangePct), 0)).Div(hundred)
		}

		var candidates []model.Bill
		if err := a.tx.Where("price >= ?", lower).
			Order("price asc, bill_id asc").Find(&candidates).Error; err != nil {
			return err
		}

		// bounded scan over distinct price levels
		var bill *model.Bill
		if len(candidates) > 0 {
			startPrice := candidates[0].Price
			count := 0
			for i := range candidates {
				c := &candidates[i]
				if c.Unmatched.LessThan(capacity.Amount) {
					continue
				}
				if bounded && c.Price.GreaterThan(upper) {
					break
				}
				if !c.Price.Equal(startPrice) {
					count++
					startPrice = c.Price
					if count >= a.cfg.BillScanLimit {
						break
					}
				}
				if c.BillID == billID {
					bill = c
					break
				}
			}
		}
		if bill == nil {
			return preconditionErr("no matched bill")
		}

		miner := bill.Owner
		if miner == user {
			return preconditionErr("can not order with self")
		}
		serviceSec := a.cfg.ClaimsInterval * int64(epoch)
		if a.now+serviceSec > bill.ExpireOn {
			return preconditionErr("service has expired")
		}
		if serviceSec < a.cfg.MinServiceDuration {
			return preconditionErr("service below minimum duration")
		}

		pay := ledger.FromDecimal(bill.Price.Mul(capacity.Amount), ledger.Collateral)
		deposit := ledger.FloorDecimal(
			pay.Amount.Mul(decimal.New(int64(bill.DepositRatio), 0)).Div(hundred), ledger.Collateral)
		if reserve.LT(pay.Add(deposit)) {
			return preconditionErr("reserve can't cover the first period")
		}
		if err := a.ledger.Debit(a.tx, user, reserve); err != nil {
			return preconditionErr("reserve debit: %v", err)
		}

		effective, err := a.accrueBillIncentive(bill)
		if err != nil {
			return err
		}
		bill.Unmatched = bill.Unmatched.Sub(capacity.Amount)
		bill.Matched = bill.Matched.Add(capacity.Amount)
		bill.UpdatedAt = effective
		assert(!bill.Unmatched.IsNegative(), "bill unmatched went negative")
		if bill.Unmatched.IsZero() {
			if err := a.tx.Delete(&model.Bill{}, "bill_id = ?", bill.BillID).Error; err != nil {
				return err
			}
		} else if err := a.tx.Save(bill).Error; err != nil {
			return err
		}

		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		if maker == nil {
			return preconditionErr("can't find maker pool")
		}
		benchPrice, err := a.benchmarkPrice()
		if err != nil {
			return err
		}
		rateDec, bounded, err := a.stakeRate(maker.TotalStaked, miner)
		if err != nil {
			return err
		}
		rate := maker.BenchmarkStakeRate * 5
		if bounded {
			scaled := uint64(rateDec.Mul(hundred).Div(benchPrice).IntPart())
			if scaled < rate {
				rate = scaled
			}
		}
		minerLock := ledger.FloorDecimal(
			pay.Amount.Mul(decimal.New(int64(rate), 0)).Div(hundred), ledger.Collateral)
		if maker.TotalStaked.LessThan(minerLock.Amount) {
			return preconditionErr("not enough stake quantity")
		}

		id, err := a.nextID(orderIDKey)
		if err != nil {
			return err
		}
		orderID = id
		order := model.Order{
			OrderID:             id,
			User:                user,
			Miner:               miner,
			BillID:              bill.BillID,
			UserPledge:          reserve.Sub(pay).Sub(deposit).Amount,
			MinerLockCapacity:   capacity.Amount,
			MinerLockCollateral: minerLock.Amount,
			Price:               pay.Amount,
			SettlementPledge:    decimal.Zero,
			LockPledge:          pay.Amount,
			Deposit:             deposit.Amount,
			MinerLockReward:     decimal.Zero,
			MinerReward:         decimal.Zero,
			UserReward:          decimal.Zero,
			State:               model.OrderStateWaiting,
			Epoch:               epoch,
		}
		if err := a.tx.Create(&order).Error; err != nil {
			return err
		}
		challenge := model.Challenge{
			OrderID:         id,
			MerkleSubmitter: ledger.SystemAccount,
			State:           model.ChallengePrepare,
			UserLock:        decimal.Zero,
			MinerPay:        decimal.Zero,
		}
		if err := a.tx.Create(&challenge).Error; err != nil {
			return err
		}

		if err := a.changeCapacity(miner, capacity.Amount.Neg()); err != nil {
			return err
		}
		maker.TotalStaked = maker.TotalStaked.Sub(minerLock.Amount)
		newRate, err := a.currentRate(ledger.Asset{Amount: maker.TotalStaked, Symbol: ledger.Collateral}, miner)
		if err != nil {
			return err
		}
		maker.CurrentRate = newRate
		if err := a.tx.Save(maker).Error; err != nil {
			return err
		}

		if err := a.generateMakerSnapshot(id, bill.BillID, miner, rate, maker.TotalStaked.IsZero()); err != nil {
			return err
		}
		if err := a.tracePriceHistory(bill.Price, bill.BillID, id); err != nil {
			return err
		}

		a.receipt(id, user, reserve, model.ReceiptAddReserve)
		a.receipt(id, user, deposit, model.ReceiptDeposit)
		a.receipt(id, user, pay, model.ReceiptRenew)
		log.Infow("order matched", "order", id, "bill", bill.BillID,
			"user", user, "miner", miner, "price", pay.String())
		return nil
	})
	return orderID, err
}

// AddOrderCollateral tops up the renter's spendable pledge.
func (e *Engine) AddOrderCollateral(sender string, orderID uint64, quantity ledger.Asset) error {
	return e.run(func(a *action) error {
		if quantity.Symbol != ledger.Collateral || !quantity.IsPositive() {
			return validationErr("must add a positive collateral amount")
		}
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if order.User != sender {
			return preconditionErr("only order user can add collateral")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if err := a.ledger.Debit(a.tx, sender, quantity); err != nil {
			return preconditionErr("collateral debit: %v", err)
		}
		order.UserPledge = order.UserPledge.Add(quantity.Amount)
		a.receipt(orderID, sender, quantity, model.ReceiptAddReserve)
		return a.tx.Save(order).Error
	})
}

// RemoveOrderCollateral returns part of the renter's spendable pledge.
func (e *Engine) RemoveOrderCollateral(sender string, orderID uint64, quantity ledger.Asset) error {
	return e.run(func(a *action) error {
		if quantity.Symbol != ledger.Collateral || !quantity.IsPositive() {
			return validationErr("must remove a positive collateral amount")
		}
		order, err := a.getOrder(orderID)
		if err != nil {
			return err
		}
		if order.User != sender {
			return preconditionErr("only order user can remove collateral")
		}
		challenge, err := a.getChallenge(orderID)
		if err != nil {
			return err
		}
		if err := a.updateOrder(order, challenge); err != nil {
			return err
		}
		if order.UserPledge.LessThan(quantity.Amount) {
			return preconditionErr("not enough user pledge")
		}
		if err := a.ledger.Credit(a.tx, sender, quantity); err != nil {
			return err
		}
		order.UserPledge = order.UserPledge.Sub(quantity.Amount)
		a.receipt(orderID, sender, quantity, model.ReceiptSubReserve)
		return a.tx.Save(order).Error
	})
}
