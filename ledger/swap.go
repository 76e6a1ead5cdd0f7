package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
)

// FixedRateSwapper converts reward units to collateral at a flat rate. The
// production system plugs the AMM in here; the curve itself is out of the
// core's scope.
type FixedRateSwapper struct {
	// RewardToCollateral is the COL paid per RWD.
	RewardToCollateral decimal.Decimal
}

func NewFixedRateSwapper(rate decimal.Decimal) *FixedRateSwapper {
	return &FixedRateSwapper{RewardToCollateral: rate}
}

func (f *FixedRateSwapper) Swap(tx *gorm.DB, quantity Asset, to Symbol) (Asset, error) {
	if quantity.Symbol == to {
		return quantity, nil
	}
	if quantity.Symbol == Reward && to == Collateral {
		return FloorDecimal(quantity.Amount.Mul(f.RewardToCollateral), Collateral), nil
	}
	return Zero(to), xerrors.Errorf("unsupported swap %s -> %s", quantity.Symbol, to)
}

var _ Swapper = (*FixedRateSwapper)(nil)

// NullEmission is the default emission source: nothing vests.
type NullEmission struct{}

func (NullEmission) PullEmission(tx *gorm.DB, now int64) (Asset, error) {
	return Zero(Collateral), nil
}

var _ Emission = NullEmission{}
