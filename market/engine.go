package market

import (
	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/model"
)

var log = logging.Logger("market")

// ReceiptSink receives the receipts of a committed action, e.g. to publish
// them on redis. Failures are the sink's problem; the action has already
// committed.
type ReceiptSink interface {
	PublishReceipts(receipts []model.OrderReceipt)
	SetBenchmarkPrice(price string)
}

// Engine executes market actions. Every public method is one atomic action:
// it either fully applies or leaves no trace.
type Engine struct {
	db       *gorm.DB
	ledger   ledger.Ledger
	swap     ledger.Swapper
	emission ledger.Emission
	clock    clock.Clock
	seeder   AuditSeeder
	sink     ReceiptSink
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithSeeder(s AuditSeeder) Option {
	return func(e *Engine) { e.seeder = s }
}

func WithSink(s ReceiptSink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithEmission(em ledger.Emission) Option {
	return func(e *Engine) { e.emission = em }
}

func NewEngine(db *gorm.DB, l ledger.Ledger, swap ledger.Swapper, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		ledger:   l,
		swap:     swap,
		emission: ledger.NullEmission{},
		clock:    clock.New(),
		seeder:   CryptoSeeder{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// action carries the per-call transaction state: the config snapshot taken
// at transaction start, the wall clock at entry, and the receipts to write.
type action struct {
	*Engine
	tx        *gorm.DB
	cfg       Config
	now       int64
	receipts  []model.OrderReceipt
	benchmark string // refreshed benchmark price, published post-commit
}

func (e *Engine) run(fn func(a *action) error) error {
	now := e.clock.Now().Unix()
	var committed []model.OrderReceipt
	var benchmark string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		a := &action{Engine: e, tx: tx, cfg: cfg, now: now}
		if err := fn(a); err != nil {
			return err
		}
		if len(a.receipts) > 0 {
			if err := tx.Create(&a.receipts).Error; err != nil {
				return err
			}
		}
		committed = a.receipts
		benchmark = a.benchmark
		return nil
	})
	if err != nil || e.sink == nil {
		return err
	}
	if len(committed) > 0 {
		e.sink.PublishReceipts(committed)
	}
	if benchmark != "" {
		e.sink.SetBenchmarkPrice(benchmark)
	}
	return nil
}

func (a *action) receipt(orderID uint64, account string, quantity ledger.Asset, typ model.ReceiptType) {
	a.receipts = append(a.receipts, model.OrderReceipt{
		OrderID:  orderID,
		Account:  account,
		Symbol:   string(quantity.Symbol),
		Amount:   quantity.Amount,
		Type:     typ,
		ExecDate: a.now,
	})
}

// forUpdate takes a row lock where the dialect supports one. The sqlite
// used in tests serializes writers anyway.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// nextID hands out the next value of a persistent counter.
func (a *action) nextID(key string) (uint64, error) {
	var row model.MarketConfig
	err := forUpdate(a.tx).
		Where("`key` = ?", key).Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = model.MarketConfig{Key: key, Value: 1}
		if err := a.tx.Create(&row).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	id := row.Value
	row.Value = id + 1
	if err := a.tx.Save(&row).Error; err != nil {
		return 0, err
	}
	return id, nil
}

// assert trips on arithmetic that must be impossible: it indicates an
// accounting bug, not a caller mistake.
func assert(cond bool, msg string) {
	if !cond {
		log.Errorf("invariant violated: %s", msg)
		panic("invariant violated: " + msg)
	}
}
