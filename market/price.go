package market

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/model"
)

func (a *action) benchmarkPrice() (decimal.Decimal, error) {
	var row model.BenchmarkPrice
	err := a.tx.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a.cfg.InitialPrice, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Price, nil
}

// tracePriceHistory records a freshly matched price, prunes history older
// than the configured day window, and refreshes the benchmark median.
func (a *action) tracePriceHistory(price decimal.Decimal, billID, orderID uint64) error {
	var history []model.PriceHistory
	if err := a.tx.Order("created_at desc, id desc").Find(&history).Error; err != nil {
		return err
	}

	prices := []decimal.Decimal{price}
	dayGaps := 0
	rawTime := a.now
	for _, row := range history {
		prices = append(prices, row.Price)
		if rawTime/daySec != row.CreatedAt/daySec {
			dayGaps++
		}
		if dayGaps >= a.cfg.MaxPriceDistance {
			prices = prices[:len(prices)-1]
			if err := a.tx.Delete(&model.PriceHistory{}, "id = ?", row.ID).Error; err != nil {
				return err
			}
		} else {
			rawTime = row.CreatedAt
		}
	}

	if err := a.tx.Create(&model.PriceHistory{
		BillID:    billID,
		OrderID:   orderID,
		Price:     price,
		CreatedAt: a.now,
	}).Error; err != nil {
		return err
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	var median decimal.Decimal
	n := len(prices)
	if n%2 == 0 {
		median = prices[n/2-1].Add(prices[n/2]).Div(decimal.New(2, 0))
	} else {
		median = prices[n/2]
	}
	median = median.RoundDown(4)

	var row model.BenchmarkPrice
	err := a.tx.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.BenchmarkPrice{ID: 1, Price: median}
		if err := a.tx.Create(&row).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		row.Price = median
		if err := a.tx.Save(&row).Error; err != nil {
			return err
		}
	}
	a.benchmark = median.StringFixed(4)
	return nil
}
