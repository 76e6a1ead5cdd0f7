package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Symbol identifies one of the three asset kinds traded by the market.
type Symbol string

const (
	// Capacity credits, issued by miners against their stake. No decimals.
	Capacity Symbol = "CAP"
	// Reward units accrued during delivery. 4 decimals.
	Reward Symbol = "RWD"
	// Collateral currency. 4 decimals.
	Collateral Symbol = "COL"
)

func (s Symbol) Precision() int32 {
	switch s {
	case Capacity:
		return 0
	case Reward, Collateral:
		return 4
	}
	panic("unknown symbol " + string(s))
}

// Asset is a fixed-point quantity of one symbol. Amount always carries at
// most Precision() decimal places once it has been through one of the
// rounding constructors.
type Asset struct {
	Amount decimal.Decimal
	Symbol Symbol
}

func NewAsset(amount int64, sym Symbol) Asset {
	return Asset{Amount: decimal.New(amount, 0), Symbol: sym}
}

func Zero(sym Symbol) Asset {
	return Asset{Amount: decimal.Zero, Symbol: sym}
}

// FromDecimal rounds half-up to the symbol's precision.
func FromDecimal(d decimal.Decimal, sym Symbol) Asset {
	return Asset{Amount: d.Round(sym.Precision()), Symbol: sym}
}

// FloorDecimal rounds down to the symbol's precision.
func FloorDecimal(d decimal.Decimal, sym Symbol) Asset {
	return Asset{Amount: d.RoundDown(sym.Precision()), Symbol: sym}
}

// CeilDecimal rounds up to the symbol's precision.
func CeilDecimal(d decimal.Decimal, sym Symbol) Asset {
	return Asset{Amount: d.RoundUp(sym.Precision()), Symbol: sym}
}

func (a Asset) check(b Asset) {
	if a.Symbol != b.Symbol {
		panic(fmt.Sprintf("symbol mismatch: %s vs %s", a.Symbol, b.Symbol))
	}
}

func (a Asset) Add(b Asset) Asset {
	a.check(b)
	return Asset{Amount: a.Amount.Add(b.Amount), Symbol: a.Symbol}
}

func (a Asset) Sub(b Asset) Asset {
	a.check(b)
	return Asset{Amount: a.Amount.Sub(b.Amount), Symbol: a.Symbol}
}

// Half returns a/2 floored to the symbol's precision.
func (a Asset) Half() Asset {
	return Asset{Amount: a.Amount.Div(decimal.New(2, 0)).RoundDown(a.Symbol.Precision()), Symbol: a.Symbol}
}

func (a Asset) Min(b Asset) Asset {
	a.check(b)
	if a.Amount.LessThan(b.Amount) {
		return a
	}
	return b
}

func (a Asset) Cmp(b Asset) int {
	a.check(b)
	return a.Amount.Cmp(b.Amount)
}

func (a Asset) GTE(b Asset) bool { return a.Cmp(b) >= 0 }
func (a Asset) LT(b Asset) bool  { return a.Cmp(b) < 0 }

func (a Asset) IsZero() bool     { return a.Amount.IsZero() }
func (a Asset) IsPositive() bool { return a.Amount.IsPositive() }
func (a Asset) IsNegative() bool { return a.Amount.IsNegative() }

// Float returns the amount as float64 for transient rate computations. The
// result must be rounded back to fixed point before persisting.
func (a Asset) Float() float64 {
	f, _ := a.Amount.Float64()
	return f
}

func (a Asset) String() string {
	return a.Amount.StringFixed(a.Symbol.Precision()) + " " + string(a.Symbol)
}
