package market

import (
	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// Liquidate scans undercollateralized makers and claws back capacity until
// their stake rate is healthy again, charging a collateral penalty. At most
// a batch of makers is handled per call so the scan stays bounded.
func (e *Engine) Liquidate() error {
	return e.run(func(a *action) error {
		var makers []model.Maker
		if err := a.tx.Order("current_rate asc").Limit(liquidationBatch * 2).
			Find(&makers).Error; err != nil {
			return err
		}
		handled := 0
		for i := range makers {
			maker := &makers[i]
			healthy, err := a.rateValue(maker.BenchmarkStakeRate)
			if err != nil {
				return err
			}
			threshold := healthy.Mul(decimal.New(int64(a.cfg.LiquidationFactor), -2))
			if maker.CurrentRate >= threshold.InexactFloat64() {
				// makers come out rate-ascending, the rest are healthy
				break
			}
			if err := a.liquidateMaker(maker, healthy); err != nil {
				return err
			}
			handled++
			if handled >= liquidationBatch {
				break
			}
		}
		return nil
	})
}

// liquidateMaker recovers the capacity overhang of one maker: first from
// the miner's free balance, then from its open bills, and charges the
// collateral penalty.
func (a *action) liquidateMaker(maker *model.Maker, healthyRate decimal.Decimal) error {
	miner := maker.Miner
	issued, err := a.issuedCapacity(miner)
	if err != nil {
		return err
	}
	if issued.IsZero() {
		return nil
	}
	rate := maker.TotalStaked.Div(issued)
	shortfall := decimal.New(1, 0).Sub(rate.Div(healthyRate))

	target := ledger.CeilDecimal(shortfall.Mul(issued), ledger.Capacity)
	leftover := target

	// free capacity first
	balance, err := a.ledger.Balance(a.tx, miner, ledger.Capacity)
	if err != nil {
		return err
	}
	if balance.IsPositive() {
		take := leftover.Min(balance)
		if err := a.ledger.Debit(a.tx, miner, take); err != nil {
			return err
		}
		leftover = leftover.Sub(take)
	}

	// then open bills, oldest first
	var bills []model.Bill
	if err := a.tx.Where("owner = ?", miner).Order("bill_id asc").Find(&bills).Error; err != nil {
		return err
	}
	for i := range bills {
		if !leftover.IsPositive() {
			break
		}
		bill := &bills[i]
		take := ledger.Asset{Amount: bill.Unmatched, Symbol: ledger.Capacity}.Min(leftover)
		leftover = leftover.Sub(take)

		effective, err := a.accrueBillIncentive(bill)
		if err != nil {
			return err
		}
		bill.Unmatched = bill.Unmatched.Sub(take.Amount)
		bill.UpdatedAt = effective
		if bill.Unmatched.IsZero() {
			if err := a.tx.Delete(&model.Bill{}, "bill_id = ?", bill.BillID).Error; err != nil {
				return err
			}
		} else if err := a.tx.Save(bill).Error; err != nil {
			return err
		}
	}

	recovered := target.Sub(leftover)
	penalty := ledger.CeilDecimal(
		shortfall.Mul(maker.TotalStaked).Mul(decimal.New(int64(a.cfg.PenaltyRate), -2)),
		ledger.Collateral)
	if !recovered.IsPositive() || !penalty.IsPositive() {
		return nil
	}

	if err := a.changeCapacity(miner, recovered.Amount.Neg()); err != nil {
		return err
	}
	maker.TotalStaked = maker.TotalStaked.Sub(penalty.Amount)
	newRate, err := a.currentRate(ledger.Asset{Amount: maker.TotalStaked, Symbol: ledger.Collateral}, miner)
	if err != nil {
		return err
	}
	maker.CurrentRate = newRate
	if err := a.tx.Save(maker).Error; err != nil {
		return err
	}
	if err := a.increasePenalty(penalty); err != nil {
		return err
	}
	a.receipt(0, miner, penalty, model.ReceiptLiquidation)
	log.Warnw("maker liquidated", "miner", miner,
		"capacity", recovered.String(), "penalty", penalty.String())
	return nil
}
