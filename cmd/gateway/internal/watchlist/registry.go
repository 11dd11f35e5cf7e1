package watchlist

import (
	"sort"
	"strings"
	"sync"
)

// ConnectionID identifies a live client channel.
type ConnectionID string

// Watchlist is the set of symbols one connection wants prices for.
type Watchlist map[string]struct{}

func (w Watchlist) Contains(symbol string) bool {
	_, ok := w[symbol]
	return ok
}

// Symbols returns the members in sorted order.
func (w Watchlist) Symbols() []string {
	out := make([]string, 0, len(w))
	for s := range w {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (w Watchlist) clone() Watchlist {
	c := make(Watchlist, len(w))
	for s := range w {
		c[s] = struct{}{}
	}
	return c
}

// Normalize upper-cases and trims a symbol. Blank input yields "".
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func newWatchlist(symbols []string) Watchlist {
	w := make(Watchlist, len(symbols))
	for _, s := range symbols {
		if s = Normalize(s); s != "" {
			w[s] = struct{}{}
		}
	}
	return w
}

// Registry maps each live connection to its watchlist.
type Registry struct {
	defaults []string

	mu    sync.RWMutex
	lists map[ConnectionID]Watchlist
}

// NewRegistry creates a registry whose new connections start on defaults.
func NewRegistry(defaults []string) *Registry {
	return &Registry{
		defaults: defaults,
		lists:    make(map[ConnectionID]Watchlist),
	}
}

// Register creates the watchlist for id, overwriting any existing one. With
// no symbols the registry defaults are used.
func (r *Registry) Register(id ConnectionID, symbols ...string) {
	if len(symbols) == 0 {
		symbols = r.defaults
	}
	w := newWatchlist(symbols)

	r.mu.Lock()
	r.lists[id] = w
	r.mu.Unlock()
}

// Replace sets the watchlist to exactly symbols. Returns false if id is unknown.
func (r *Registry) Replace(id ConnectionID, symbols []string) bool {
	w := newWatchlist(symbols)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lists[id]; !ok {
		return false
	}
	r.lists[id] = w
	return true
}

// Add inserts symbol. Returns false if id is unknown or the symbol is blank.
func (r *Registry) Add(id ConnectionID, symbol string) bool {
	symbol = Normalize(symbol)
	if symbol == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.lists[id]
	if !ok {
		return false
	}
	w[symbol] = struct{}{}
	return true
}

// Remove deletes symbol if present. Returns true only if something was removed.
func (r *Registry) Remove(id ConnectionID, symbol string) bool {
	symbol = Normalize(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.lists[id]
	if !ok || !w.Contains(symbol) {
		return false
	}
	delete(w, symbol)
	return true
}

// Unregister drops the watchlist for id. Safe to call repeatedly.
func (r *Registry) Unregister(id ConnectionID) {
	r.mu.Lock()
	delete(r.lists, id)
	r.mu.Unlock()
}

// Get returns a copy of id's watchlist.
func (r *Registry) Get(id ConnectionID) (Watchlist, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.lists[id]
	if !ok {
		return nil, false
	}
	return w.clone(), true
}

// AllSymbols returns the sorted union of every watchlist.
func (r *Registry) AllSymbols() []string {
	r.mu.RLock()
	union := make(Watchlist)
	for _, w := range r.lists {
		for s := range w {
			union[s] = struct{}{}
		}
	}
	r.mu.RUnlock()

	return union.Symbols()
}

// ForEach calls fn for every connection with a copy of its watchlist. The
// copies are taken under one read lock, fn runs without it. Order is unspecified.
func (r *Registry) ForEach(fn func(id ConnectionID, w Watchlist)) {
	r.mu.RLock()
	snapshot := make(map[ConnectionID]Watchlist, len(r.lists))
	for id, w := range r.lists {
		snapshot[id] = w.clone()
	}
	r.mu.RUnlock()

	for id, w := range snapshot {
		fn(id, w)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists)
}

// Reset drops every watchlist.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.lists = make(map[ConnectionID]Watchlist)
	r.mu.Unlock()
}
