package pricing

import (
	"math/rand"
	"sync"
)

// PriceSource is what the broadcast engine prices demand with. A real feed
// can replace the synthetic Generator by satisfying it.
type PriceSource interface {
	NextPrice(symbol string) float64
}

// Evictor is implemented by sources that keep per-symbol state.
type Evictor interface {
	Forget(symbol string)
}

// for deterministic values
type Rand interface {
	Float64() float64
}

// RealRand makes a *rand.Rand safe to share between symbols.
type RealRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRealRand(seed int64) *RealRand {
	return &RealRand{r: rand.New(rand.NewSource(seed))}
}

func (r *RealRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}
