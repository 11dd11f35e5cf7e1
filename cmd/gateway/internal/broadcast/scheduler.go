package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/metrics"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/watchlist"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	DefaultInterval    = 3 * time.Second
	defaultSinkTimeout = 2 * time.Second
)

// Registry is the read side of the watchlist registry used on each tick.
type Registry interface {
	AllSymbols() []string
	ForEach(fn func(id watchlist.ConnectionID, w watchlist.Watchlist))
}

// Deliverer hands a serialized message to one connection without blocking.
type Deliverer interface {
	Deliver(id watchlist.ConnectionID, payload []byte) error
}

// Sink receives every priced batch after fan-out (Redis mirror, Kafka journal).
type Sink interface {
	Name() string
	Publish(ctx context.Context, prices []models.PricedSymbol) error
}

type Options struct {
	Interval time.Duration
	// EvictAfterTicks forgets a symbol's price state once it has been out of
	// demand this many consecutive ticks. 0 keeps state forever.
	EvictAfterTicks int
	Sinks           []Sink
	SinkTimeout     time.Duration
}

// TickResult summarises one broadcast cycle.
type TickResult struct {
	Skipped   bool
	Demand    []string
	Priced    []models.PricedSymbol
	Delivered int
	Failed    int
	Evicted   []string
}

// Scheduler prices the symbols in demand once per tick and fans each
// connection its own slice of the result.
type Scheduler struct {
	registry  Registry
	source    pricing.PriceSource
	deliverer Deliverer
	logger    *zap.Logger
	clock     clockwork.Clock

	interval    time.Duration
	evictAfter  int
	sinks       []Sink
	sinkTimeout time.Duration

	// tickMu serialises whole ticks; idle is only touched under it.
	tickMu sync.Mutex
	idle   map[string]int
}

func NewScheduler(
	registry Registry,
	source pricing.PriceSource,
	deliverer Deliverer,
	logger *zap.Logger,
	clock clockwork.Clock,
	opts Options,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	return &Scheduler{
		registry:    registry,
		source:      source,
		deliverer:   deliverer,
		logger:      logger,
		clock:       clock,
		interval:    opts.Interval,
		evictAfter:  opts.EvictAfterTicks,
		sinks:       opts.Sinks,
		sinkTimeout: opts.SinkTimeout,
		idle:        make(map[string]int),
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Broadcast Scheduler Started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Broadcast Scheduler Stopped")
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick runs one broadcast cycle.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.clock.Now()
	defer func() {
		metrics.TickDuration.Observe(s.clock.Since(start).Seconds())
	}()

	var res TickResult
	res.Demand = s.registry.AllSymbols()
	res.Evicted = s.sweep(res.Demand)

	if len(res.Demand) == 0 {
		res.Skipped = true
		metrics.TicksTotal.WithLabelValues("skipped").Inc()
		return res
	}

	// Demand is already a set, so each symbol is priced exactly once
	res.Priced = make([]models.PricedSymbol, 0, len(res.Demand))
	for _, sym := range res.Demand {
		res.Priced = append(res.Priced, models.PricedSymbol{Symbol: sym, Price: s.source.NextPrice(sym)})
	}
	metrics.SymbolsPriced.Add(float64(len(res.Priced)))

	s.registry.ForEach(func(id watchlist.ConnectionID, w watchlist.Watchlist) {
		if s.deliver(id, filter(res.Priced, w)) {
			res.Delivered++
		} else {
			res.Failed++
		}
	})

	s.publish(ctx, res.Priced)

	metrics.TicksTotal.WithLabelValues("broadcast").Inc()
	s.logger.Debug("Tick complete",
		zap.Int("symbols", len(res.Priced)),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (s *Scheduler) deliver(id watchlist.ConnectionID, prices []models.PricedSymbol) bool {
	payload, err := json.Marshal(protocol.NewPriceUpdate(prices))
	if err != nil {
		s.logger.Error("JSON Marshal Error", zap.Error(err))
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return false
	}

	if err := s.deliverer.Deliver(id, payload); err != nil {
		// One broken channel never holds up the rest of the fan-out
		s.logger.Debug("Delivery failed", zap.String("conn_id", string(id)), zap.Error(err))
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return false
	}
	metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
	return true
}

func (s *Scheduler) publish(ctx context.Context, prices []models.PricedSymbol) {
	for _, sink := range s.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
		err := sink.Publish(sinkCtx, prices)
		cancel()
		if err != nil {
			s.logger.Warn("Sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
			metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
		}
	}
}

// sweep ages every symbol that has been demanded before and forgets the ones
// idle for evictAfter consecutive ticks, in the price source and in any sink
// that keeps per-symbol state.
func (s *Scheduler) sweep(demand []string) []string {
	if s.evictAfter <= 0 {
		return nil
	}

	inDemand := make(map[string]struct{}, len(demand))
	for _, sym := range demand {
		inDemand[sym] = struct{}{}
		s.idle[sym] = 0
	}

	var evicted []string
	for sym := range s.idle {
		if _, ok := inDemand[sym]; ok {
			continue
		}
		s.idle[sym]++
		if s.idle[sym] >= s.evictAfter {
			s.forget(sym)
			delete(s.idle, sym)
			evicted = append(evicted, sym)
		}
	}

	if len(evicted) > 0 {
		metrics.PriceStatesEvicted.Add(float64(len(evicted)))
		s.logger.Debug("Evicted idle price state", zap.Strings("symbols", evicted))
	}
	return evicted
}

func (s *Scheduler) forget(sym string) {
	if e, ok := s.source.(pricing.Evictor); ok {
		e.Forget(sym)
	}
	for _, sink := range s.sinks {
		if e, ok := sink.(pricing.Evictor); ok {
			e.Forget(sym)
		}
	}
}

func filter(prices []models.PricedSymbol, w watchlist.Watchlist) []models.PricedSymbol {
	out := make([]models.PricedSymbol, 0, len(w))
	for _, p := range prices {
		if w.Contains(p.Symbol) {
			out = append(out, p)
		}
	}
	return out
}
