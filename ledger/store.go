package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cloudmall/storage_market/model"
)

// Store is the default Ledger backed by the same database as the market
// tables, so balance changes commit or roll back with the action that
// caused them.
type Store struct{}

// forUpdate takes a row lock where the dialect supports one.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Balance(tx *gorm.DB, account string, sym Symbol) (Asset, error) {
	var row model.AccountBalance
	err := tx.Where("account = ? AND symbol = ?", account, string(sym)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Zero(sym), nil
	}
	if err != nil {
		return Zero(sym), err
	}
	return Asset{Amount: row.Amount, Symbol: sym}, nil
}

func (s *Store) Debit(tx *gorm.DB, account string, quantity Asset) error {
	if quantity.IsNegative() {
		return xerrors.Errorf("debit of negative amount %s", quantity)
	}
	if quantity.IsZero() {
		return nil
	}
	var row model.AccountBalance
	err := forUpdate(tx).
		Where("account = ? AND symbol = ?", account, string(quantity.Symbol)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return xerrors.Errorf("%s has no %s balance", account, quantity.Symbol)
	}
	if err != nil {
		return err
	}
	if row.Amount.LessThan(quantity.Amount) {
		return xerrors.Errorf("insufficient balance: %s holds %s %s, needs %s",
			account, row.Amount, quantity.Symbol, quantity)
	}
	row.Amount = row.Amount.Sub(quantity.Amount)
	return tx.Save(&row).Error
}

func (s *Store) Credit(tx *gorm.DB, account string, quantity Asset) error {
	if quantity.IsNegative() {
		return xerrors.Errorf("credit of negative amount %s", quantity)
	}
	if quantity.IsZero() {
		return nil
	}
	var row model.AccountBalance
	err := forUpdate(tx).
		Where("account = ? AND symbol = ?", account, string(quantity.Symbol)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.AccountBalance{
			Account: account,
			Symbol:  string(quantity.Symbol),
			Amount:  decimal.Zero,
		}
	} else if err != nil {
		return err
	}
	row.Amount = row.Amount.Add(quantity.Amount)
	return tx.Save(&row).Error
}

func (s *Store) Lock(tx *gorm.DB, account string, quantity Asset, until int64) error {
	if !quantity.IsPositive() {
		return xerrors.Errorf("lock of non-positive amount %s", quantity)
	}
	row := model.LockedBalance{
		Account: account,
		Symbol:  string(quantity.Symbol),
		Amount:  quantity.Amount,
		Until:   until,
	}
	return tx.Create(&row).Error
}

func (s *Store) Unlock(tx *gorm.DB, account string, sym Symbol, now int64) (Asset, error) {
	var rows []model.LockedBalance
	err := forUpdate(tx).
		Where("account = ? AND symbol = ? AND until <= ?", account, string(sym), now).
		Find(&rows).Error
	if err != nil {
		return Zero(sym), err
	}
	total := Zero(sym)
	for _, row := range rows {
		total = total.Add(Asset{Amount: row.Amount, Symbol: sym})
		if err := tx.Delete(&model.LockedBalance{}, "id = ?", row.ID).Error; err != nil {
			return Zero(sym), err
		}
	}
	if total.IsZero() {
		return total, nil
	}
	if err := s.Credit(tx, account, total); err != nil {
		return Zero(sym), err
	}
	log.Debugw("unlocked balance", "account", account, "quantity", total.String())
	return total, nil
}

var _ Ledger = (*Store)(nil)
