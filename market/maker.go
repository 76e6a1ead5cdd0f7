package market

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

// rate assigned to a maker that has issued no capacity yet
const unboundedRate = float64(math.MaxUint32)

func (a *action) getMaker(miner string) (*model.Maker, error) {
	var maker model.Maker
	err := forUpdate(a.tx).
		Where("miner = ?", miner).Take(&maker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &maker, nil
}

func (a *action) poolEntry(miner, owner string) (*model.MakerPool, error) {
	var entry model.MakerPool
	err := a.tx.Where("miner = ? AND owner = ?", miner, owner).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (a *action) issuedCapacity(miner string) (decimal.Decimal, error) {
	var stat model.CapacityStat
	err := a.tx.Where("miner = ?", miner).Take(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return stat.Amount, nil
}

func (a *action) changeCapacity(miner string, delta decimal.Decimal) error {
	var stat model.CapacityStat
	err := forUpdate(a.tx).
		Where("miner = ?", miner).Take(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = model.CapacityStat{Miner: miner, Amount: decimal.Zero}
		if err := a.tx.Create(&stat).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	stat.Amount = stat.Amount.Add(delta)
	assert(!stat.Amount.IsNegative(), "negative issued capacity")
	return a.tx.Save(&stat).Error
}

// stakeRate is collateral value per issued capacity unit. bounded is false
// when the maker has issued no capacity yet.
func (a *action) stakeRate(staked decimal.Decimal, miner string) (rate decimal.Decimal, bounded bool, err error) {
	capacity, err := a.issuedCapacity(miner)
	if err != nil {
		return decimal.Zero, false, err
	}
	if capacity.IsZero() {
		return decimal.Zero, false, nil
	}
	return staked.Div(capacity), true, nil
}

// currentRate is stakeRate flattened for the sortable column.
func (a *action) currentRate(staked ledger.Asset, miner string) (float64, error) {
	rate, bounded, err := a.stakeRate(staked.Amount, miner)
	if err != nil {
		return 0, err
	}
	if !bounded {
		return unboundedRate, nil
	}
	return rate.InexactFloat64(), nil
}

// rateValue converts a stake rate (percent*100) into a collateral-per-unit
// value at the current benchmark price.
func (a *action) rateValue(rate uint64) (decimal.Decimal, error) {
	price, err := a.benchmarkPrice()
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(decimal.New(int64(rate), -2)), nil
}

// IncreaseStake adds collateral to a miner's pool. The first contribution
// must come from the miner itself and sets the weight baseline.
func (e *Engine) IncreaseStake(owner string, quantity ledger.Asset, miner string) error {
	return e.run(func(a *action) error {
		if quantity.Symbol != ledger.Collateral {
			return validationErr("only collateral can be staked")
		}
		if !quantity.IsPositive() {
			return validationErr("must increase a positive amount")
		}
		if err := a.ledger.Debit(a.tx, owner, quantity); err != nil {
			return preconditionErr("stake debit: %v", err)
		}

		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		entry, err := a.poolEntry(miner, owner)
		if err != nil {
			return err
		}

		switch {
		case maker == nil:
			if owner != miner {
				return preconditionErr("no such maker")
			}
			rate, err := a.currentRate(quantity, miner)
			if err != nil {
				return err
			}
			maker = &model.Maker{
				Miner:              miner,
				CurrentRate:        rate,
				MinerShareRate:     1,
				TotalWeight:        staticWeights,
				TotalStaked:        quantity.Amount,
				BenchmarkStakeRate: a.cfg.BenchmarkStakeRate,
			}
			if err := a.tx.Create(maker).Error; err != nil {
				return err
			}
			return a.upsertPoolWeight(miner, owner, staticWeights)

		case maker.TotalStaked.IsZero():
			// an emptied pool restarts from the baseline, miner only
			if owner != miner {
				return preconditionErr("only miner can stake now")
			}
			rate, err := a.currentRate(quantity, miner)
			if err != nil {
				return err
			}
			maker.CurrentRate = rate
			maker.TotalWeight = staticWeights
			maker.TotalStaked = quantity.Amount
			if err := a.tx.Save(maker).Error; err != nil {
				return err
			}
			return a.setPoolWeight(miner, owner, staticWeights)

		default:
			stakedF, _ := maker.TotalStaked.Float64()
			newWeight := quantity.Float() / stakedF * maker.TotalWeight
			if newWeight <= 0 {
				return validationErr("invalid new weight")
			}
			totalWeight := maker.TotalWeight + newWeight
			newStaked := maker.TotalStaked.Add(quantity.Amount)
			rate, err := a.currentRate(ledger.Asset{Amount: newStaked, Symbol: ledger.Collateral}, miner)
			if err != nil {
				return err
			}
			maker.TotalWeight = totalWeight
			maker.TotalStaked = newStaked
			maker.CurrentRate = rate
			if err := a.tx.Save(maker).Error; err != nil {
				return err
			}

			ownerWeight := newWeight
			if entry != nil {
				ownerWeight += entry.Weight
			}
			if err := a.upsertPoolWeight(miner, owner, ownerWeight); err != nil {
				return err
			}

			minerEntry, err := a.poolEntry(miner, miner)
			if err != nil {
				return err
			}
			assert(minerEntry != nil, "maker pool lost its miner entry")
			if minerEntry.Weight/totalWeight < maker.MinerShareRate {
				return preconditionErr("miner share would fall below its floor")
			}
			// LP stakes below 1% of the open weight are dust; a share
			// rate of 1 leaves no open weight to measure against
			if owner != miner && maker.MinerShareRate < 1 &&
				ownerWeight/(totalWeight*(1-maker.MinerShareRate)) < 0.01 {
				return preconditionErr("the quantity of increase is insufficient")
			}
			return nil
		}
	})
}

func (a *action) upsertPoolWeight(miner, owner string, weight float64) error {
	entry, err := a.poolEntry(miner, owner)
	if err != nil {
		return err
	}
	if entry == nil {
		return a.tx.Create(&model.MakerPool{Miner: miner, Owner: owner, Weight: weight}).Error
	}
	entry.Weight = weight
	return a.tx.Save(entry).Error
}

func (a *action) setPoolWeight(miner, owner string, weight float64) error {
	return a.upsertPoolWeight(miner, owner, weight)
}

// RedeemStake converts a fraction of the contributor's weight back into
// collateral, time-locked for three days.
func (e *Engine) RedeemStake(owner string, fraction float64, miner string) error {
	return e.run(func(a *action) error {
		if fraction <= 0 || fraction > 1 {
			return validationErr("invalid redemption fraction %v", fraction)
		}
		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		if maker == nil {
			return preconditionErr("no such maker")
		}
		entry, err := a.poolEntry(miner, owner)
		if err != nil {
			return err
		}
		if entry == nil {
			return preconditionErr("no such limited partnership")
		}

		ownerWeight := entry.Weight * fraction
		redeRate := ownerWeight / maker.TotalWeight
		redeQuantity := ledger.FloorDecimal(
			maker.TotalStaked.Mul(decimal.NewFromFloat(redeRate)), ledger.Collateral)

		lastOne := false
		if fraction == 1 {
			if err := a.tx.Delete(&model.MakerPool{}, "id = ?", entry.ID).Error; err != nil {
				return err
			}
			var remaining []model.MakerPool
			if err := a.tx.Where("miner = ?", miner).Find(&remaining).Error; err != nil {
				return err
			}
			if len(remaining) == 0 {
				redeQuantity = ledger.Asset{Amount: maker.TotalStaked, Symbol: ledger.Collateral}
			} else if len(remaining) == 1 {
				lastOne = true
				ownerWeight = remaining[0].Weight
			}
		} else {
			entry.Weight -= ownerWeight
			if entry.Weight <= 0 {
				return preconditionErr("negative pool weight amount")
			}
			if err := a.tx.Save(entry).Error; err != nil {
				return err
			}
		}

		totalWeight := maker.TotalWeight - ownerWeight
		totalStaked := maker.TotalStaked.Sub(redeQuantity.Amount)
		benchmark, err := a.rateValue(maker.BenchmarkStakeRate)
		if err != nil {
			return err
		}
		rate, bounded, err := a.stakeRate(totalStaked, miner)
		if err != nil {
			return err
		}

		if owner == miner {
			if bounded && rate.LessThan(benchmark) {
				return preconditionErr("stake rate would fall below benchmark")
			}
			if !totalStaked.IsZero() {
				minerEntry, err := a.poolEntry(miner, miner)
				if err != nil {
					return err
				}
				if minerEntry == nil {
					return preconditionErr("miner can only redeem all last")
				}
				if minerEntry.Weight/totalWeight < maker.MinerShareRate {
					return preconditionErr("miner share would fall below its floor")
				}
			}
		}
		if !redeQuantity.IsPositive() {
			return preconditionErr("dust redemption")
		}
		if err := a.ledger.Lock(a.tx, owner, redeQuantity, a.now+redeemLockSec); err != nil {
			return err
		}
		a.receipt(0, owner, redeQuantity, model.ReceiptSubReserve)

		if totalStaked.IsZero() {
			var orderCount int64
			if err := a.tx.Model(&model.Order{}).Where("miner = ?", miner).Count(&orderCount).Error; err != nil {
				return err
			}
			if orderCount > 0 {
				return preconditionErr("maker has orders")
			}
			return a.tx.Delete(&model.Maker{}, "miner = ?", miner).Error
		}

		maker.TotalWeight = totalWeight
		if lastOne {
			maker.TotalWeight = ownerWeight
		}
		maker.TotalStaked = totalStaked
		maker.CurrentRate = unboundedRate
		if bounded {
			maker.CurrentRate = rate.InexactFloat64()
		}
		assert(!maker.TotalStaked.IsNegative(), "negative total staked")
		assert(maker.TotalWeight >= 0, "negative total weight")
		if err := a.tx.Save(maker).Error; err != nil {
			return err
		}
		if fraction != 1 && maker.MinerShareRate < 1 &&
			entry.Weight/(maker.TotalWeight*(1-maker.MinerShareRate)) < 0.01 {
			return preconditionErr("the remaining weight is too low")
		}
		return nil
	})
}

// ClaimUnlocked sweeps matured redemption locks back into the owner's free
// balance.
func (e *Engine) ClaimUnlocked(owner string, sym ledger.Symbol) (ledger.Asset, error) {
	released := ledger.Zero(sym)
	err := e.run(func(a *action) error {
		var err error
		released, err = a.ledger.Unlock(a.tx, owner, sym, a.now)
		return err
	})
	return released, err
}

// SetMinerShareRate lowers (or raises) the floor fraction of pool weight
// the miner itself must hold.
func (e *Engine) SetMinerShareRate(miner string, rate float64) error {
	return e.run(func(a *action) error {
		if rate < 0.2 || rate > 1 {
			return validationErr("invalid share rate %v", rate)
		}
		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		if maker == nil {
			return preconditionErr("no such maker")
		}
		entry, err := a.poolEntry(miner, miner)
		if err != nil {
			return err
		}
		assert(entry != nil, "maker pool lost its miner entry")
		if entry.Weight/maker.TotalWeight < rate {
			return preconditionErr("current miner share does not meet the requested floor")
		}
		maker.MinerShareRate = rate
		return a.tx.Save(maker).Error
	})
}

// SetBenchmarkRate updates the maker's self-declared stake rate, throttled
// and bounded against the global benchmark.
func (e *Engine) SetBenchmarkRate(miner string, rate uint64) error {
	return e.run(func(a *action) error {
		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		if maker == nil {
			return preconditionErr("no such maker")
		}
		if a.now < maker.RateUpdatedAt+a.cfg.RateChangeInterval {
			return preconditionErr("change rate interval too short")
		}
		if maker.RateUpdatedAt == 0 {
			if rate < a.cfg.BenchmarkStakeRate {
				return validationErr("benchmark stake rate below global benchmark")
			}
		} else {
			prior := float64(maker.BenchmarkStakeRate)
			if float64(rate) > prior*1.1 || float64(rate) < prior*0.9 || rate < a.cfg.BenchmarkStakeRate {
				return validationErr("benchmark stake rate out of bounds")
			}
		}
		maker.BenchmarkStakeRate = rate
		maker.RateUpdatedAt = a.now
		return a.tx.Save(maker).Error
	})
}

// MintCapacity issues new capacity credits against the maker's stake.
func (e *Engine) MintCapacity(miner string, quantity ledger.Asset) error {
	return e.run(func(a *action) error {
		if quantity.Symbol != ledger.Capacity {
			return validationErr("only capacity can be minted")
		}
		if !quantity.IsPositive() {
			return validationErr("must mint a positive amount")
		}
		maker, err := a.getMaker(miner)
		if err != nil {
			return err
		}
		if maker == nil {
			return preconditionErr("no such maker")
		}
		benchmark, err := a.rateValue(maker.BenchmarkStakeRate)
		if err != nil {
			return err
		}
		mintable := maker.TotalStaked.Div(benchmark).Floor()
		issued, err := a.issuedCapacity(miner)
		if err != nil {
			return err
		}
		if issued.Add(quantity.Amount).GreaterThan(mintable) {
			return preconditionErr("insufficient stake to mint")
		}
		if err := a.ledger.Credit(a.tx, miner, quantity); err != nil {
			return err
		}
		if err := a.changeCapacity(miner, quantity.Amount); err != nil {
			return err
		}
		rate, bounded, err := a.stakeRate(maker.TotalStaked, miner)
		if err != nil {
			return err
		}
		assert(bounded, "minted maker has no issued capacity")
		if rate.LessThan(benchmark) {
			return preconditionErr("stake rate would fall below benchmark")
		}
		maker.CurrentRate = rate.InexactFloat64()
		return a.tx.Save(maker).Error
	})
}
