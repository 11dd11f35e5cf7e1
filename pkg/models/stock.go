package models

import (
	"sync"
	"time"
)

// PricedSymbol is one symbol's price for a single broadcast tick.
type PricedSymbol struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// StockUpdate is the record written to the price sinks (Redis, Kafka)
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

// Sequencer stamps priced symbols into StockUpdates with a per-symbol SeqID.
type Sequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{counters: make(map[string]int64)}
}

func (s *Sequencer) Stamp(prices []PricedSymbol, now time.Time) []StockUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now.UnixMicro()
	out := make([]StockUpdate, len(prices))
	for i, p := range prices {
		s.counters[p.Symbol]++
		out[i] = StockUpdate{Symbol: p.Symbol, Price: p.Price, Timestamp: ts, SeqID: s.counters[p.Symbol]}
	}
	return out
}

// Forget drops the counter for symbol; its next update starts again at 1.
func (s *Sequencer) Forget(symbol string) {
	s.mu.Lock()
	delete(s.counters, symbol)
	s.mu.Unlock()
}

func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
