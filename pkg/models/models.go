package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// OrderBookLevel представляет уровень стакана
type OrderBookLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook представляет стакан заявок
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Timestamp time.Time        `json:"timestamp"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
}

// FundingRate представляет ставку финансирования (Rate в долях: 0.0001 = 0.01%)
type FundingRate struct {
	Symbol          string    `json:"symbol"`
	Rate            float64   `json:"rate"`
	Timestamp       time.Time `json:"timestamp"`
	NextFundingTime time.Time `json:"next_funding_time"`
}

// OpenInterest представляет открытый интерес
type OpenInterest struct {
	Symbol    string    `json:"symbol"`
	Value     float64   `json:"value"`
	ValueUSD  float64   `json:"value_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// LiquidationEvent представляет принудительную ликвидацию с биржи.
// Side = SELL означает ликвидацию лонга, BUY означает ликвидацию шорта.
type LiquidationEvent struct {
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
}
