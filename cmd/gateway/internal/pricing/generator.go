package pricing

import (
	"math"
	"sync"
)

const (
	baselineMin   = 100.0
	baselineRange = 100.0
	priceFloor    = 0.01
	maxStepPct    = 0.02

	// Slightly below the 0.5 midpoint so the walk drifts upward over long runs.
	driftCenter = 0.48
)

var (
	_ PriceSource = (*Generator)(nil)
	_ Evictor     = (*Generator)(nil)
)

type symbolState struct {
	mu    sync.Mutex
	price float64
}

// Generator produces a synthetic random-walk price per symbol. State is
// created on the first request for a symbol.
type Generator struct {
	rand Rand

	mu     sync.RWMutex
	states map[string]*symbolState
}

func NewGenerator(rnd Rand) *Generator {
	return &Generator{
		rand:   rnd,
		states: make(map[string]*symbolState),
	}
}

// NextPrice advances the walk for symbol and returns the new price rounded to
// two decimals. Calls for the same symbol are serialised; different symbols
// only share the map lookup.
func (g *Generator) NextPrice(symbol string) float64 {
	st := g.state(symbol)

	st.mu.Lock()
	defer st.mu.Unlock()

	pct := (g.rand.Float64() - driftCenter) * maxStepPct
	st.price = math.Max(priceFloor, st.price*(1+pct))
	return round2(st.price)
}

// Forget drops the walk state for symbol. The next request starts a fresh baseline.
func (g *Generator) Forget(symbol string) {
	g.mu.Lock()
	delete(g.states, symbol)
	g.mu.Unlock()
}

// Len reports how many symbols currently hold state.
func (g *Generator) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.states)
}

func (g *Generator) state(symbol string) *symbolState {
	g.mu.RLock()
	st, ok := g.states[symbol]
	g.mu.RUnlock()
	if ok {
		return st
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok = g.states[symbol]; ok {
		return st
	}
	st = &symbolState{price: baselineMin + g.rand.Float64()*baselineRange}
	g.states[symbol] = st
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
