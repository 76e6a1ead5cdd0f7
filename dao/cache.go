package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cloudmall/storage_market/model"
)

const (
	CacheTimeout time.Duration = 3600 * time.Second

	// receipts kept on the recent list
	receiptListLimit = 10000
)

var benchmarkPriceKey = "benchmark_price"
var receiptListKey = "order_receipt_list"
var receiptNotify = "receipt_notify"

// Publisher mirrors committed market events into redis: a pub/sub channel
// for live consumers plus a capped list and the benchmark price for
// dashboards. All failures are logged and swallowed, the database row is
// the source of truth.
type Publisher struct {
	ctx context.Context
	rds *redis.Client
}

func NewPublisher(ctx context.Context, rds *redis.Client) *Publisher {
	return &Publisher{
		ctx: ctx,
		rds: rds,
	}
}

func (p *Publisher) PublishReceipts(receipts []model.OrderReceipt) {
	for _, receipt := range receipts {
		raw, err := json.Marshal(receipt)
		if err != nil {
			log.Errorf("marshal receipt failed:%v", err)
			continue
		}
		if err := p.rds.Publish(p.ctx, receiptNotify, raw).Err(); err != nil {
			log.Errorf("publish receipt failed:%v", err)
		}
		if err := p.rds.LPush(p.ctx, receiptListKey, raw).Err(); err != nil {
			log.Errorf("push receipt failed:%v", err)
			continue
		}
	}
	if err := p.rds.LTrim(p.ctx, receiptListKey, 0, receiptListLimit-1).Err(); err != nil {
		log.Errorf("trim receipt list failed:%v", err)
	}
}

func (p *Publisher) SetBenchmarkPrice(price string) {
	if err := p.rds.Set(p.ctx, benchmarkPriceKey, price, CacheTimeout).Err(); err != nil {
		log.Errorf("set benchmark price failed:%v", err)
	}
}

// CachedBenchmarkPrice reads the cached price; empty when the cache is
// cold.
func (p *Publisher) CachedBenchmarkPrice() string {
	val, err := p.rds.Get(p.ctx, benchmarkPriceKey).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		log.Errorf("get benchmark price failed:%v", err)
		return ""
	}
	return val
}

// RecentReceipts returns up to count receipts, newest first.
func (p *Publisher) RecentReceipts(count int64) ([]model.OrderReceipt, error) {
	raws, err := p.rds.LRange(p.ctx, receiptListKey, 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	receipts := make([]model.OrderReceipt, 0, len(raws))
	for _, raw := range raws {
		var receipt model.OrderReceipt
		if err := json.Unmarshal([]byte(raw), &receipt); err != nil {
			log.Errorf("unmarshal receipt failed:%v", err)
			continue
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}
