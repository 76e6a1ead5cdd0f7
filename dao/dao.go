package dao

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/model"
)

var log = logging.Logger("dao")

// Dao is the read side of the market database: plain queries, no state
// transitions.
type Dao struct {
	ctx context.Context
	db  *gorm.DB
}

func NewDao(ctx context.Context, db *gorm.DB) *Dao {
	return &Dao{
		ctx: ctx,
		db:  db,
	}
}

func (d *Dao) GetBill(billID uint64) (*model.Bill, error) {
	var bill model.Bill
	if err := d.db.Where("bill_id = ?", billID).Take(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListBills returns open bills price-ascending. owner narrows to one miner
// when non-empty.
func (d *Dao) ListBills(owner string, limit int) ([]model.Bill, error) {
	var bills []model.Bill
	q := d.db.Order("price asc, bill_id asc")
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&bills).Error
	return bills, err
}

func (d *Dao) GetOrder(orderID uint64) (*model.Order, error) {
	var order model.Order
	if err := d.db.Where("order_id = ?", orderID).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *Dao) ListOrdersByUser(user string) ([]model.Order, error) {
	var orders []model.Order
	err := d.db.Where("user = ?", user).Order("order_id asc").Find(&orders).Error
	return orders, err
}

func (d *Dao) ListOrdersByMiner(miner string) ([]model.Order, error) {
	var orders []model.Order
	err := d.db.Where("miner = ?", miner).Order("order_id asc").Find(&orders).Error
	return orders, err
}

func (d *Dao) GetChallenge(orderID uint64) (*model.Challenge, error) {
	var challenge model.Challenge
	if err := d.db.Where("order_id = ?", orderID).Take(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (d *Dao) GetMaker(miner string) (*model.Maker, []model.MakerPool, error) {
	var maker model.Maker
	if err := d.db.Where("miner = ?", miner).Take(&maker).Error; err != nil {
		return nil, nil, err
	}
	var pools []model.MakerPool
	if err := d.db.Where("miner = ?", miner).Find(&pools).Error; err != nil {
		return nil, nil, err
	}
	return &maker, pools, nil
}

// ListMakersByRate returns makers rate-ascending, the order liquidation
// scans them in.
func (d *Dao) ListMakersByRate(limit int) ([]model.Maker, error) {
	var makers []model.Maker
	q := d.db.Order("current_rate asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&makers).Error
	return makers, err
}

func (d *Dao) ListReceipts(orderID uint64, limit int) ([]model.OrderReceipt, error) {
	var receipts []model.OrderReceipt
	q := d.db.Where("order_id = ?", orderID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&receipts).Error
	return receipts, err
}

func (d *Dao) ListAccountReceipts(account string, limit int) ([]model.OrderReceipt, error) {
	var receipts []model.OrderReceipt
	q := d.db.Where("account = ?", account).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&receipts).Error
	return receipts, err
}

func (d *Dao) GetBenchmarkPrice() (decimal.Decimal, error) {
	var row model.BenchmarkPrice
	err := d.db.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Price, nil
}

func (d *Dao) ListPriceHistory(limit int) ([]model.PriceHistory, error) {
	var history []model.PriceHistory
	q := d.db.Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&history).Error
	return history, err
}

func (d *Dao) GetBalance(account, symbol string) (decimal.Decimal, error) {
	var row model.AccountBalance
	err := d.db.Where("account = ? AND symbol = ?", account, symbol).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Amount, nil
}
