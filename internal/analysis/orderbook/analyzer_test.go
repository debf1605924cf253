package orderbook

import (
	"testing"

	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/models"
)

func book(bidAmount, askAmount float64) *models.OrderBook {
	b := &models.OrderBook{Symbol: "BTCUSDT"}
	for i := 0; i < 10; i++ {
		b.Bids = append(b.Bids, models.OrderBookLevel{Price: 59990 - float64(i)*10, Amount: bidAmount})
		b.Asks = append(b.Asks, models.OrderBookLevel{Price: 60010 + float64(i)*10, Amount: askAmount})
	}
	return b
}

func TestBidHeavyBookIsPositive(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.OrderBook)

	res, err := a.Analyze(book(3, 1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Imbalance != 50 {
		t.Errorf("ожидался дисбаланс 50, получено %f", res.Imbalance)
	}
	if res.Score <= 0 {
		t.Errorf("ожидалось положительное давление, получено %f", res.Score)
	}

	res, _ = a.Analyze(book(1, 3))
	if res.Score >= 0 {
		t.Errorf("ожидалось отрицательное давление, получено %f", res.Score)
	}
}

func TestBalancedBookBelowThreshold(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.OrderBook)

	res, err := a.Analyze(book(1, 1.1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Imbalance != 0 {
		t.Errorf("дисбаланс ниже порога должен обнуляться, получено %f", res.Imbalance)
	}
}

func TestEmptyBook(t *testing.T) {
	a := NewAnalyzer(config.Default().Analysis.OrderBook)

	if _, err := a.Analyze(&models.OrderBook{Bids: []models.OrderBookLevel{{Price: 1, Amount: 1}}}); err == nil {
		t.Error("ожидалась ошибка для стакана без асков")
	}
	if _, err := a.Analyze(nil); err == nil {
		t.Error("ожидалась ошибка для nil")
	}
}
