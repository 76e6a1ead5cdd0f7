package rpc

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/dao"
	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/market"
	"github.com/cloudmall/storage_market/merkle"
	"github.com/cloudmall/storage_market/model"
)

// Handler adapts the engine and the read layer to the RPC surface.
type Handler struct {
	engine *market.Engine
	dao    *dao.Dao
}

func NewServer(engine *market.Engine, d *dao.Dao) http.Handler {
	server := jsonrpc.NewServer()
	server.Register("Market", &Handler{engine: engine, dao: d})
	return server
}

func (h *Handler) PlaceBill(ctx context.Context, owner string, quantity ledger.Asset, price decimal.Decimal, expireOn int64, depositRatio uint64) (uint64, error) {
	return h.engine.PlaceBill(owner, quantity, price, expireOn, depositRatio)
}

func (h *Handler) CancelBill(ctx context.Context, owner string, billID uint64) error {
	return h.engine.CancelBill(owner, billID)
}

func (h *Handler) ClaimBillIncentive(ctx context.Context, owner string, billID uint64) error {
	return h.engine.ClaimBillIncentive(owner, billID)
}

func (h *Handler) IncreaseStake(ctx context.Context, owner string, quantity ledger.Asset, miner string) error {
	return h.engine.IncreaseStake(owner, quantity, miner)
}

func (h *Handler) RedeemStake(ctx context.Context, owner string, fraction float64, miner string) error {
	return h.engine.RedeemStake(owner, fraction, miner)
}

func (h *Handler) ClaimUnlocked(ctx context.Context, owner string, sym ledger.Symbol) (ledger.Asset, error) {
	return h.engine.ClaimUnlocked(owner, sym)
}

func (h *Handler) SetMinerShareRate(ctx context.Context, miner string, rate float64) error {
	return h.engine.SetMinerShareRate(miner, rate)
}

func (h *Handler) SetBenchmarkRate(ctx context.Context, miner string, rate uint64) error {
	return h.engine.SetBenchmarkRate(miner, rate)
}

func (h *Handler) MintCapacity(ctx context.Context, miner string, quantity ledger.Asset) error {
	return h.engine.MintCapacity(miner, quantity)
}

func (h *Handler) MatchOrder(ctx context.Context, user string, billID uint64, refPrice decimal.Decimal, priceRange market.PriceRange, epoch uint64, capacity, reserve ledger.Asset) (uint64, error) {
	return h.engine.MatchOrder(user, billID, refPrice, priceRange, epoch, capacity, reserve)
}

func (h *Handler) AddOrderCollateral(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error {
	return h.engine.AddOrderCollateral(sender, orderID, quantity)
}

func (h *Handler) SubOrderCollateral(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error {
	return h.engine.RemoveOrderCollateral(sender, orderID, quantity)
}

func (h *Handler) Tick(ctx context.Context, orderID uint64) error {
	return h.engine.Tick(orderID)
}

func (h *Handler) ClaimDeposit(ctx context.Context, sender string, orderID uint64) error {
	return h.engine.ClaimDeposit(sender, orderID)
}

func (h *Handler) ClaimSettlement(ctx context.Context, sender string, orderID uint64) error {
	return h.engine.ClaimSettlement(sender, orderID)
}

func (h *Handler) CancelOrder(ctx context.Context, sender string, orderID uint64) error {
	return h.engine.CancelOrder(sender, orderID)
}

func (h *Handler) SubmitMerkle(ctx context.Context, sender string, orderID uint64, root merkle.Hash, blockCount uint64) error {
	return h.engine.SubmitMerkleCommitment(sender, orderID, root, blockCount)
}

func (h *Handler) RequestChallenge(ctx context.Context, sender string, orderID uint64, dataID uint64, commitHash merkle.Hash, nonce string) error {
	return h.engine.RequestChallenge(sender, orderID, dataID, commitHash, nonce)
}

func (h *Handler) AnswerChallenge(ctx context.Context, sender string, orderID uint64, replyHash merkle.Hash) error {
	return h.engine.AnswerChallenge(sender, orderID, replyHash)
}

func (h *Handler) Arbitrate(ctx context.Context, sender string, orderID uint64, data []byte, path []merkle.Hash) error {
	return h.engine.Arbitrate(sender, orderID, data, path)
}

func (h *Handler) PayOnTimeout(ctx context.Context, sender string, orderID uint64) error {
	return h.engine.PayOnTimeout(sender, orderID)
}

func (h *Handler) SetConfig(ctx context.Context, key string, value uint64) error {
	return h.engine.SetConfig(key, value)
}

func (h *Handler) GetBill(ctx context.Context, billID uint64) (*model.Bill, error) {
	return h.dao.GetBill(billID)
}

func (h *Handler) ListBills(ctx context.Context, owner string, limit int) ([]model.Bill, error) {
	return h.dao.ListBills(owner, limit)
}

func (h *Handler) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	return h.dao.GetOrder(orderID)
}

func (h *Handler) ListOrdersByUser(ctx context.Context, user string) ([]model.Order, error) {
	return h.dao.ListOrdersByUser(user)
}

func (h *Handler) ListOrdersByMiner(ctx context.Context, miner string) ([]model.Order, error) {
	return h.dao.ListOrdersByMiner(miner)
}

func (h *Handler) GetChallenge(ctx context.Context, orderID uint64) (*model.Challenge, error) {
	return h.dao.GetChallenge(orderID)
}

func (h *Handler) GetMaker(ctx context.Context, miner string) (*MakerInfo, error) {
	maker, pools, err := h.dao.GetMaker(miner)
	if err != nil {
		return nil, err
	}
	return &MakerInfo{Maker: *maker, Pools: pools}, nil
}

func (h *Handler) ListMakersByRate(ctx context.Context, limit int) ([]model.Maker, error) {
	return h.dao.ListMakersByRate(limit)
}

func (h *Handler) GetBenchmarkPrice(ctx context.Context) (decimal.Decimal, error) {
	return h.dao.GetBenchmarkPrice()
}

func (h *Handler) ListPriceHistory(ctx context.Context, limit int) ([]model.PriceHistory, error) {
	return h.dao.ListPriceHistory(limit)
}

func (h *Handler) ListReceipts(ctx context.Context, orderID uint64, limit int) ([]model.OrderReceipt, error) {
	return h.dao.ListReceipts(orderID, limit)
}

func (h *Handler) ListAccountReceipts(ctx context.Context, account string, limit int) ([]model.OrderReceipt, error) {
	return h.dao.ListAccountReceipts(account, limit)
}

func (h *Handler) GetBalance(ctx context.Context, account, symbol string) (decimal.Decimal, error) {
	return h.dao.GetBalance(account, symbol)
}
