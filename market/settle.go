package market

import (
	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// rewardParcel is one amount to run through the settlement split.
type rewardParcel struct {
	quantity ledger.Asset
	typ      model.ReceiptType
}

// parcels of these types carve out the miner's share; everything else
// (e.g. the returned miner lock) flows entirely to the pool split.
func claimableParcel(typ model.ReceiptType) bool {
	return typ == model.ReceiptClaim || typ == model.ReceiptDeposit || typ == model.ReceiptReward
}

// generateMakerSnapshot freezes the pool's LP ratios for the life of an
// order. When reset is set the maker's stake just hit zero and the live
// weights are cleared so a restart begins from the baseline.
func (a *action) generateMakerSnapshot(orderID, billID uint64, miner string, rate uint64, reset bool) error {
	maker, err := a.getMaker(miner)
	if err != nil {
		return err
	}
	if maker == nil {
		return preconditionErr("can't find maker pool")
	}
	var entries []model.MakerPool
	if err := a.tx.Where("miner = ?", miner).Find(&entries).Error; err != nil {
		return err
	}
	snapshot := model.MakerSnapshot{
		OrderID: orderID,
		Miner:   miner,
		BillID:  billID,
		Rate:    rate,
	}
	if err := a.tx.Create(&snapshot).Error; err != nil {
		return err
	}
	for _, entry := range entries {
		lp := model.SnapshotLP{
			OrderID: orderID,
			Owner:   entry.Owner,
			Ratio:   entry.Weight / maker.TotalWeight,
		}
		if err := a.tx.Create(&lp).Error; err != nil {
			return err
		}
		if reset {
			entry.Weight = 0
			if err := a.tx.Save(&entry).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *action) getSnapshot(orderID uint64) (*model.MakerSnapshot, []model.SnapshotLP, error) {
	var snapshot model.MakerSnapshot
	if err := a.tx.Where("order_id = ?", orderID).Take(&snapshot).Error; err != nil {
		return nil, nil, preconditionErr("order snapshot not found for %d", orderID)
	}
	var lps []model.SnapshotLP
	if err := a.tx.Where("order_id = ?", orderID).Order("id asc").Find(&lps).Error; err != nil {
		return nil, nil, err
	}
	return &snapshot, lps, nil
}

func (a *action) deleteMakerSnapshot(orderID uint64) error {
	if err := a.tx.Delete(&model.MakerSnapshot{}, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	return a.tx.Delete(&model.SnapshotLP{}, "order_id = ?", orderID).Error
}

// increasePenalty routes a fine into the penalty pool, folding in whatever
// the emission schedule has vested.
func (a *action) increasePenalty(quantity ledger.Asset) error {
	if quantity.IsPositive() {
		if err := a.ledger.Credit(a.tx, ledger.PenaltyAccount, quantity); err != nil {
			return err
		}
	}
	vested, err := a.emission.PullEmission(a.tx, a.now)
	if err != nil {
		return err
	}
	if vested.IsPositive() {
		if err := a.ledger.Credit(a.tx, ledger.PenaltyAccount, vested); err != nil {
			return err
		}
	}
	return nil
}

// distributeLPPool splits released order value between the miner and the
// LPs recorded in the order's snapshot. The miner's carve-out first pays
// down pendingPenalty; whatever of the penalty is left stays carried.
// LP shares compound into live pool weight; LPs who have since left are
// paid out directly.
func (a *action) distributeLPPool(orderID uint64, rewards []rewardParcel, pendingPenalty ledger.Asset) (ledger.Asset, error) {
	if len(rewards) == 0 {
		return pendingPenalty, validationErr("invalid rewards size")
	}
	snapshot, lps, err := a.getSnapshot(orderID)
	if err != nil {
		return pendingPenalty, err
	}
	miner := snapshot.Miner
	maker, err := a.getMaker(miner)
	if err != nil {
		return pendingPenalty, err
	}
	assert(maker != nil, "maker vanished under a live order")

	remainPenalty := pendingPenalty
	splitRate := decimal.New(int64(snapshot.Rate), -2) // rate/100

	for i := range rewards {
		if !claimableParcel(rewards[i].typ) {
			continue
		}
		minerShare := ledger.FromDecimal(
			rewards[i].quantity.Amount.Div(splitRate.Add(decimal.New(1, 0))), ledger.Collateral)
		rewards[i].quantity = rewards[i].quantity.Sub(minerShare)

		penaltyPay := minerShare.Min(remainPenalty)
		minerShare = minerShare.Sub(penaltyPay)
		if minerShare.IsPositive() {
			if err := a.ledger.Credit(a.tx, miner, minerShare); err != nil {
				return pendingPenalty, err
			}
			a.receipt(orderID, miner, minerShare, rewards[i].typ)
		}
		if penaltyPay.IsPositive() {
			if err := a.increasePenalty(penaltyPay); err != nil {
				return pendingPenalty, err
			}
			a.receipt(orderID, miner, penaltyPay, model.ReceiptChallengeAns)
		}
		remainPenalty = remainPenalty.Sub(penaltyPay)
	}

	pledge := ledger.Zero(ledger.Collateral)
	for _, r := range rewards {
		pledge = pledge.Add(r.quantity)
	}

	stakedF, _ := maker.TotalStaked.Float64()
	compounding := stakedF > 0 // an empty pool cannot absorb weight

	subPledge := ledger.Zero(ledger.Collateral)
	totalAdd := ledger.Zero(ledger.Collateral)
	for _, lp := range lps {
		if lp.Owner == miner {
			continue
		}
		ownerPledge := ledger.FloorDecimal(
			pledge.Amount.Mul(decimal.NewFromFloat(lp.Ratio)), ledger.Collateral)
		paid, err := a.compoundOrPay(miner, lp.Owner, ownerPledge, compounding, maker)
		if err != nil {
			return pendingPenalty, err
		}
		subPledge = subPledge.Add(paid)
		totalAdd = totalAdd.Add(ownerPledge)
	}
	// the miner takes its own ratio plus all rounding dust
	minerPledge := pledge.Sub(totalAdd)
	paid, err := a.compoundOrPay(miner, miner, minerPledge, compounding, maker)
	if err != nil {
		return pendingPenalty, err
	}
	subPledge = subPledge.Add(paid)

	reinvested := pledge.Sub(subPledge)
	newStaked := maker.TotalStaked.Add(reinvested.Amount)
	if compounding && reinvested.IsPositive() {
		maker.TotalWeight += reinvested.Float() / stakedF * maker.TotalWeight
	}
	maker.TotalStaked = newStaked
	rate, err := a.currentRate(ledger.Asset{Amount: newStaked, Symbol: ledger.Collateral}, miner)
	if err != nil {
		return pendingPenalty, err
	}
	maker.CurrentRate = rate
	if err := a.tx.Save(maker).Error; err != nil {
		return pendingPenalty, err
	}
	return remainPenalty, nil
}

// compoundOrPay reinvests quantity as pool weight when the owner still has
// a live entry, otherwise pays it out. Returns what was paid out directly.
func (a *action) compoundOrPay(miner, owner string, quantity ledger.Asset, compounding bool, maker *model.Maker) (ledger.Asset, error) {
	if !quantity.IsPositive() {
		return ledger.Zero(ledger.Collateral), nil
	}
	if compounding {
		entry, err := a.poolEntry(miner, owner)
		if err != nil {
			return ledger.Zero(ledger.Collateral), err
		}
		if entry != nil {
			stakedF, _ := maker.TotalStaked.Float64()
			entry.Weight += quantity.Float() / stakedF * maker.TotalWeight
			if err := a.tx.Save(entry).Error; err != nil {
				return ledger.Zero(ledger.Collateral), err
			}
			return ledger.Zero(ledger.Collateral), nil
		}
	}
	if err := a.ledger.Credit(a.tx, owner, quantity); err != nil {
		return ledger.Zero(ledger.Collateral), err
	}
	return quantity, nil
}
