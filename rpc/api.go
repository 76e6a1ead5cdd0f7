// Package rpc exposes the market over JSON-RPC. The client mirrors the
// server handler through a struct of function fields so both sides share
// one signature set.
package rpc

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/market"
	"github.com/cloudmall/storage_market/merkle"
	"github.com/cloudmall/storage_market/model"
)

// MakerInfo bundles a maker with its live pool entries.
type MakerInfo struct {
	Maker model.Maker
	Pools []model.MakerPool
}

// MarketAPI is the client-side stub filled in by the merge client.
type MarketAPI struct {
	Internal struct {
		PlaceBill           func(ctx context.Context, owner string, quantity ledger.Asset, price decimal.Decimal, expireOn int64, depositRatio uint64) (uint64, error)
		CancelBill          func(ctx context.Context, owner string, billID uint64) error
		ClaimBillIncentive  func(ctx context.Context, owner string, billID uint64) error
		IncreaseStake       func(ctx context.Context, owner string, quantity ledger.Asset, miner string) error
		RedeemStake         func(ctx context.Context, owner string, fraction float64, miner string) error
		ClaimUnlocked       func(ctx context.Context, owner string, sym ledger.Symbol) (ledger.Asset, error)
		SetMinerShareRate   func(ctx context.Context, miner string, rate float64) error
		SetBenchmarkRate    func(ctx context.Context, miner string, rate uint64) error
		MintCapacity        func(ctx context.Context, miner string, quantity ledger.Asset) error
		MatchOrder          func(ctx context.Context, user string, billID uint64, refPrice decimal.Decimal, priceRange market.PriceRange, epoch uint64, capacity, reserve ledger.Asset) (uint64, error)
		AddOrderCollateral  func(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error
		SubOrderCollateral  func(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error
		Tick                func(ctx context.Context, orderID uint64) error
		ClaimDeposit        func(ctx context.Context, sender string, orderID uint64) error
		ClaimSettlement     func(ctx context.Context, sender string, orderID uint64) error
		CancelOrder         func(ctx context.Context, sender string, orderID uint64) error
		SubmitMerkle        func(ctx context.Context, sender string, orderID uint64, root merkle.Hash, blockCount uint64) error
		RequestChallenge    func(ctx context.Context, sender string, orderID uint64, dataID uint64, commitHash merkle.Hash, nonce string) error
		AnswerChallenge     func(ctx context.Context, sender string, orderID uint64, replyHash merkle.Hash) error
		Arbitrate           func(ctx context.Context, sender string, orderID uint64, data []byte, path []merkle.Hash) error
		PayOnTimeout        func(ctx context.Context, sender string, orderID uint64) error
		SetConfig           func(ctx context.Context, key string, value uint64) error
		GetBill             func(ctx context.Context, billID uint64) (*model.Bill, error)
		ListBills           func(ctx context.Context, owner string, limit int) ([]model.Bill, error)
		GetOrder            func(ctx context.Context, orderID uint64) (*model.Order, error)
		ListOrdersByUser    func(ctx context.Context, user string) ([]model.Order, error)
		ListOrdersByMiner   func(ctx context.Context, miner string) ([]model.Order, error)
		GetChallenge        func(ctx context.Context, orderID uint64) (*model.Challenge, error)
		GetMaker            func(ctx context.Context, miner string) (*MakerInfo, error)
		ListMakersByRate    func(ctx context.Context, limit int) ([]model.Maker, error)
		GetBenchmarkPrice   func(ctx context.Context) (decimal.Decimal, error)
		ListPriceHistory    func(ctx context.Context, limit int) ([]model.PriceHistory, error)
		ListReceipts        func(ctx context.Context, orderID uint64, limit int) ([]model.OrderReceipt, error)
		ListAccountReceipts func(ctx context.Context, account string, limit int) ([]model.OrderReceipt, error)
		GetBalance          func(ctx context.Context, account, symbol string) (decimal.Decimal, error)
	}
}

func (a *MarketAPI) PlaceBill(ctx context.Context, owner string, quantity ledger.Asset, price decimal.Decimal, expireOn int64, depositRatio uint64) (uint64, error) {
	return a.Internal.PlaceBill(ctx, owner, quantity, price, expireOn, depositRatio)
}

func (a *MarketAPI) CancelBill(ctx context.Context, owner string, billID uint64) error {
	return a.Internal.CancelBill(ctx, owner, billID)
}

func (a *MarketAPI) ClaimBillIncentive(ctx context.Context, owner string, billID uint64) error {
	return a.Internal.ClaimBillIncentive(ctx, owner, billID)
}

func (a *MarketAPI) IncreaseStake(ctx context.Context, owner string, quantity ledger.Asset, miner string) error {
	return a.Internal.IncreaseStake(ctx, owner, quantity, miner)
}

func (a *MarketAPI) RedeemStake(ctx context.Context, owner string, fraction float64, miner string) error {
	return a.Internal.RedeemStake(ctx, owner, fraction, miner)
}

func (a *MarketAPI) ClaimUnlocked(ctx context.Context, owner string, sym ledger.Symbol) (ledger.Asset, error) {
	return a.Internal.ClaimUnlocked(ctx, owner, sym)
}

func (a *MarketAPI) SetMinerShareRate(ctx context.Context, miner string, rate float64) error {
	return a.Internal.SetMinerShareRate(ctx, miner, rate)
}

func (a *MarketAPI) SetBenchmarkRate(ctx context.Context, miner string, rate uint64) error {
	return a.Internal.SetBenchmarkRate(ctx, miner, rate)
}

func (a *MarketAPI) MintCapacity(ctx context.Context, miner string, quantity ledger.Asset) error {
	return a.Internal.MintCapacity(ctx, miner, quantity)
}

func (a *MarketAPI) MatchOrder(ctx context.Context, user string, billID uint64, refPrice decimal.Decimal, priceRange market.PriceRange, epoch uint64, capacity, reserve ledger.Asset) (uint64, error) {
	return a.Internal.MatchOrder(ctx, user, billID, refPrice, priceRange, epoch, capacity, reserve)
}

func (a *MarketAPI) AddOrderCollateral(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error {
	return a.Internal.AddOrderCollateral(ctx, sender, orderID, quantity)
}

func (a *MarketAPI) SubOrderCollateral(ctx context.Context, sender string, orderID uint64, quantity ledger.Asset) error {
	return a.Internal.SubOrderCollateral(ctx, sender, orderID, quantity)
}

func (a *MarketAPI) Tick(ctx context.Context, orderID uint64) error {
	return a.Internal.Tick(ctx, orderID)
}

func (a *MarketAPI) ClaimDeposit(ctx context.Context, sender string, orderID uint64) error {
	return a.Internal.ClaimDeposit(ctx, sender, orderID)
}

func (a *MarketAPI) ClaimSettlement(ctx context.Context, sender string, orderID uint64) error {
	return a.Internal.ClaimSettlement(ctx, sender, orderID)
}

func (a *MarketAPI) CancelOrder(ctx context.Context, sender string, orderID uint64) error {
	return a.Internal.CancelOrder(ctx, sender, orderID)
}

func (a *MarketAPI) SubmitMerkle(ctx context.Context, sender string, orderID uint64, root merkle.Hash, blockCount uint64) error {
	return a.Internal.SubmitMerkle(ctx, sender, orderID, root, blockCount)
}

func (a *MarketAPI) RequestChallenge(ctx context.Context, sender string, orderID uint64, dataID uint64, commitHash merkle.Hash, nonce string) error {
	return a.Internal.RequestChallenge(ctx, sender, orderID, dataID, commitHash, nonce)
}

func (a *MarketAPI) AnswerChallenge(ctx context.Context, sender string, orderID uint64, replyHash merkle.Hash) error {
	return a.Internal.AnswerChallenge(ctx, sender, orderID, replyHash)
}

func (a *MarketAPI) Arbitrate(ctx context.Context, sender string, orderID uint64, data []byte, path []merkle.Hash) error {
	return a.Internal.Arbitrate(ctx, sender, orderID, data, path)
}

func (a *MarketAPI) PayOnTimeout(ctx context.Context, sender string, orderID uint64) error {
	return a.Internal.PayOnTimeout(ctx, sender, orderID)
}

func (a *MarketAPI) SetConfig(ctx context.Context, key string, value uint64) error {
	return a.Internal.SetConfig(ctx, key, value)
}

func (a *MarketAPI) GetBill(ctx context.Context, billID uint64) (*model.Bill, error) {
	return a.Internal.GetBill(ctx, billID)
}

func (a *MarketAPI) ListBills(ctx context.Context, owner string, limit int) ([]model.Bill, error) {
	return a.Internal.ListBills(ctx, owner, limit)
}

func (a *MarketAPI) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	return a.Internal.GetOrder(ctx, orderID)
}

func (a *MarketAPI) ListOrdersByUser(ctx context.Context, user string) ([]model.Order, error) {
	return a.Internal.ListOrdersByUser(ctx, user)
}

func (a *MarketAPI) ListOrdersByMiner(ctx context.Context, miner string) ([]model.Order, error) {
	return a.Internal.ListOrdersByMiner(ctx, miner)
}

func (a *MarketAPI) GetChallenge(ctx context.Context, orderID uint64) (*model.Challenge, error) {
	return a.Internal.GetChallenge(ctx, orderID)
}

func (a *MarketAPI) GetMaker(ctx context.Context, miner string) (*MakerInfo, error) {
	return a.Internal.GetMaker(ctx, miner)
}

func (a *MarketAPI) ListMakersByRate(ctx context.Context, limit int) ([]model.Maker, error) {
	return a.Internal.ListMakersByRate(ctx, limit)
}

func (a *MarketAPI) GetBenchmarkPrice(ctx context.Context) (decimal.Decimal, error) {
	return a.Internal.GetBenchmarkPrice(ctx)
}

func (a *MarketAPI) ListPriceHistory(ctx context.Context, limit int) ([]model.PriceHistory, error) {
	return a.Internal.ListPriceHistory(ctx, limit)
}

func (a *MarketAPI) ListReceipts(ctx context.Context, orderID uint64, limit int) ([]model.OrderReceipt, error) {
	return a.Internal.ListReceipts(ctx, orderID, limit)
}

func (a *MarketAPI) ListAccountReceipts(ctx context.Context, account string, limit int) ([]model.OrderReceipt, error) {
	return a.Internal.ListAccountReceipts(ctx, account, limit)
}

func (a *MarketAPI) GetBalance(ctx context.Context, account, symbol string) (decimal.Decimal, error) {
	return a.Internal.GetBalance(ctx, account, symbol)
}
