package ledger

import (
	logging "github.com/ipfs/go-log/v2"
	"gorm.io/gorm"
)

var log = logging.Logger("ledger")

// Accounts with special meaning to the market core. The penalty account
// collects challenge fines and liquidation penalties.
const (
	SystemAccount  = "market.sys"
	PenaltyAccount = "market.penalty"
)

// Ledger is the external account-balance service. Implementations must
// perform all mutations against the supplied transaction handle so that a
// failed market action rolls the balance changes back with it.
type Ledger interface {
	// Debit removes quantity from account's free balance. Fails if the
	// balance is insufficient; no partial debit.
	Debit(tx *gorm.DB, account string, quantity Asset) error
	// Credit adds quantity to account's free balance.
	Credit(tx *gorm.DB, account string, quantity Asset) error
	// Lock credits quantity into a balance bucket that cannot be spent
	// before the given unix time.
	Lock(tx *gorm.DB, account string, quantity Asset, until int64) error
	// Unlock sweeps every matured bucket (until <= now) of the symbol into
	// the free balance and reports the total released.
	Unlock(tx *gorm.DB, account string, sym Symbol, now int64) (Asset, error)
	// Balance reports the free balance.
	Balance(tx *gorm.DB, account string, sym Symbol) (Asset, error)
}

// Swapper converts between asset kinds at the prevailing pool price. The
// AMM itself is outside the core.
type Swapper interface {
	Swap(tx *gorm.DB, quantity Asset, to Symbol) (Asset, error)
}

// Emission releases newly minted collateral according to the vesting
// schedule, also outside the core.
type Emission interface {
	PullEmission(tx *gorm.DB, now int64) (Asset, error)
}
