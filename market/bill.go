package market

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

var maxBillPrice = decimal.New(1, 0).Shift(15) // prices are sane well below this

// PlaceBill publishes a standing capacity offer. The offered capacity is
// debited from the miner up front.
func (e *Engine) PlaceBill(owner string, quantity ledger.Asset, price decimal.Decimal, expireOn int64, depositRatio uint64) (uint64, error) {
	var billID uint64
	err := e.run(func(a *action) error {
		if quantity.Symbol != ledger.Capacity {
			return validationErr("only capacity can be billed")
		}
		if !quantity.IsPositive() {
			return validationErr("must bill a positive amount")
		}
		if price.LessThan(decimal.New(1, -4)) || price.GreaterThanOrEqual(maxBillPrice) {
			return validationErr("invalid price %s", price)
		}
		if depositRatio > 99 {
			return validationErr("invalid deposit ratio %d", depositRatio)
		}
		if expireOn < a.now+a.cfg.ServiceInterval {
			return validationErr("invalid service time")
		}
		if err := a.ledger.Debit(a.tx, owner, quantity); err != nil {
			return preconditionErr("bill debit: %v", err)
		}
		id, err := a.nextID(billIDKey)
		if err != nil {
			return err
		}
		billID = id
		bill := model.Bill{
			BillID:       id,
			Owner:        owner,
			Unmatched:    quantity.Amount,
			Matched:      decimal.Zero,
			Price:        price.Round(4),
			CreatedAt:    a.now,
			UpdatedAt:    a.now,
			ExpireOn:     expireOn,
			DepositRatio: depositRatio,
		}
		return a.tx.Create(&bill).Error
	})
	return billID, err
}

// CancelBill removes an offer and returns the unmatched capacity, paying
// out any incentive accrued so far.
func (e *Engine) CancelBill(owner string, billID uint64) error {
	return e.run(func(a *action) error {
		bill, err := a.getBill(billID)
		if err != nil {
			return err
		}
		if bill.Owner != owner {
			return preconditionErr("only owner can cancel bill")
		}
		if _, err := a.accrueBillIncentive(bill); err != nil {
			return err
		}
		unmatched := ledger.Asset{Amount: bill.Unmatched, Symbol: ledger.Capacity}
		if err := a.tx.Delete(&model.Bill{}, "bill_id = ?", billID).Error; err != nil {
			return err
		}
		return a.ledger.Credit(a.tx, owner, unmatched)
	})
}

// ClaimBillIncentive settles the accrued incentive without touching the
// offer itself.
func (e *Engine) ClaimBillIncentive(owner string, billID uint64) error {
	return e.run(func(a *action) error {
		bill, err := a.getBill(billID)
		if err != nil {
			return err
		}
		if bill.Owner != owner {
			return preconditionErr("bill does not belong to claimer")
		}
		effective, err := a.accrueBillIncentive(bill)
		if err != nil {
			return err
		}
		bill.UpdatedAt = effective
		return a.tx.Save(bill).Error
	})
}

func (a *action) getBill(billID uint64) (*model.Bill, error) {
	var bill model.Bill
	err := forUpdate(a.tx).
		Where("bill_id = ?", billID).Take(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, preconditionErr("no such bill %d", billID)
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// accrueBillIncentive compounds the bill's staking incentive into the
// owner's maker stake. A bill only accrues for one incentive span from
// creation. Returns the timestamp the bill should be stamped with.
func (a *action) accrueBillIncentive(bill *model.Bill) (int64, error) {
	maker, err := a.getMaker(bill.Owner)
	if err != nil {
		return 0, err
	}
	if maker == nil {
		return 0, preconditionErr("no maker for bill owner %s", bill.Owner)
	}

	span := a.cfg.BillIncentiveSpan
	accrualEnd := bill.CreatedAt + span
	effective := a.now
	if effective > accrualEnd {
		effective = accrualEnd
	}
	if bill.UpdatedAt > accrualEnd {
		return effective, nil
	}

	duration := effective - bill.UpdatedAt
	assert(duration >= 0, "bill accrual duration went negative")
	unmatchedF, _ := bill.Unmatched.Float64()
	reward := ledger.FloorDecimal(decimal.NewFromFloat(
		incentiveRate*float64(duration)*unmatchedF*float64(a.cfg.BenchmarkStakeRate)/100.0/float64(span),
	), ledger.Reward)
	if !reward.IsPositive() {
		// nothing accrued, keep the old stamp
		return bill.UpdatedAt, nil
	}

	collateral, err := a.swap.Swap(a.tx, reward, ledger.Collateral)
	if err != nil {
		return 0, err
	}
	if collateral.IsPositive() {
		maker.TotalStaked = maker.TotalStaked.Add(collateral.Amount)
		rate, err := a.currentRate(ledger.Asset{Amount: maker.TotalStaked, Symbol: ledger.Collateral}, bill.Owner)
		if err != nil {
			return 0, err
		}
		maker.CurrentRate = rate
		if err := a.tx.Save(maker).Error; err != nil {
			return 0, err
		}
		a.receipt(0, bill.Owner, collateral, model.ReceiptIncentive)
	}
	return effective, nil
}
