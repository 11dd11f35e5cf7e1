package watchlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbols(t *testing.T, r *Registry, id ConnectionID) []string {
	t.Helper()
	w, ok := r.Get(id)
	require.True(t, ok, "connection %s should be registered", id)
	return w.Symbols()
}

func TestRegistry_RegisterUsesDefaults(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})

	r.Register("c1")

	assert.Equal(t, []string{"AAPL"}, symbols(t, r, "c1"))
}

func TestRegistry_RegisterExplicitSymbols(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})

	r.Register("c1", "msft", " tsla ")

	assert.Equal(t, []string{"MSFT", "TSLA"}, symbols(t, r, "c1"))
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})

	r.Register("c1", "MSFT")
	r.Register("c1")

	assert.Equal(t, []string{"AAPL"}, symbols(t, r, "c1"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ReplaceNormalizesAndDedupes(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")

	ok := r.Replace("c1", []string{"tsla", "TSLA", "msft", ""})

	assert.True(t, ok)
	assert.Equal(t, []string{"MSFT", "TSLA"}, symbols(t, r, "c1"))
}

func TestRegistry_ReplaceUnknownIsNoop(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})

	assert.False(t, r.Replace("ghost", []string{"TSLA"}))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.AllSymbols())
}

func TestRegistry_AddIsIdempotentAcrossCase(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("c1", "MSFT")

	r.Add("c1", "aapl")
	r.Add("c1", "AAPL")

	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols(t, r, "c1"))
}

func TestRegistry_AddRejectsBlankAndUnknown(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")

	assert.False(t, r.Add("c1", "   "))
	assert.False(t, r.Add("ghost", "TSLA"))
	assert.Equal(t, []string{"AAPL"}, symbols(t, r, "c1"))
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1", "TSLA")

	assert.False(t, r.Remove("c1", "GOOG"))
	assert.True(t, r.Remove("c1", "tsla"))
	assert.False(t, r.Remove("ghost", "TSLA"))

	assert.Empty(t, symbols(t, r, "c1"), "watchlist stays registered but empty")
	assert.Empty(t, r.AllSymbols())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")

	r.Unregister("c1")
	r.Unregister("c1")

	_, ok := r.Get("c1")
	assert.False(t, ok)
}

func TestRegistry_AllSymbolsAfterUnregister(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("c1", "AAPL", "TSLA")
	r.Register("c2", "AAPL", "GOOG")

	assert.Equal(t, []string{"AAPL", "GOOG", "TSLA"}, r.AllSymbols())

	r.Unregister("c1")

	// AAPL survives because c2 still watches it
	assert.Equal(t, []string{"AAPL", "GOOG"}, r.AllSymbols())
}

func TestRegistry_ForEachGivesCopies(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("c1", "AAPL")
	r.Register("c2", "TSLA")

	seen := map[ConnectionID][]string{}
	r.ForEach(func(id ConnectionID, w Watchlist) {
		seen[id] = w.Symbols()
		w["MUTATED"] = struct{}{}
		// fn runs outside the lock
		r.Add(id, "GOOG")
	})

	assert.Equal(t, map[ConnectionID][]string{"c1": {"AAPL"}, "c2": {"TSLA"}}, seen)
	assert.Equal(t, []string{"AAPL", "GOOG"}, symbols(t, r, "c1"))
	assert.NotContains(t, r.AllSymbols(), "MUTATED")
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")

	w, _ := r.Get("c1")
	delete(w, "AAPL")

	assert.Equal(t, []string{"AAPL"}, symbols(t, r, "c1"))
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")
	r.Register("c2")

	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.AllSymbols())
}

func TestRegistry_SubscribeThenAddScenario(t *testing.T) {
	r := NewRegistry([]string{"AAPL"})
	r.Register("c1")

	r.Replace("c1", []string{"TSLA", "MSFT"})
	r.Add("c1", "goog")

	assert.Equal(t, []string{"GOOG", "MSFT", "TSLA"}, symbols(t, r, "c1"))
}

func TestRegistry_ConcurrentMutationAndIteration(t *testing.T) {
	// Run with `go test -race ./...`
	r := NewRegistry([]string{"AAPL"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := ConnectionID(string(rune('a' + i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Register(id)
				r.Add(id, "TSLA")
				r.Replace(id, []string{"MSFT", "GOOG"})
				r.Remove(id, "MSFT")
				r.Unregister(id)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			r.AllSymbols()
			r.ForEach(func(ConnectionID, Watchlist) {})
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
