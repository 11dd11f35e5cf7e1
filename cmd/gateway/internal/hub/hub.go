package hub

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/metrics"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/watchlist"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDeliveryFailed    = errors.New("send buffer full or closed")
)

type ClientInterface interface {
	ID() watchlist.ConnectionID
	SendJSON(v interface{}) bool
	SendBytes(b []byte) bool
	Close()
}

// Hub owns the live connections: it creates and drops their watchlists and
// routes inbound commands to the registry. It is also the scheduler's
// delivery path.
type Hub struct {
	clients  map[watchlist.ConnectionID]ClientInterface
	registry *watchlist.Registry
	logger   *zap.Logger
	mu       sync.RWMutex
}

func NewHub(registry *watchlist.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[watchlist.ConnectionID]ClientInterface),
		registry: registry,
		logger:   logger,
	}
}

// Register tracks a new connection and gives it the default watchlist.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.ID()
	h.clients[id] = client
	h.registry.Register(id)

	metrics.ConnectedClients.Set(float64(len(h.clients)))
	h.logger.Debug("Client registered", zap.String("conn_id", string(id)), zap.Int("clients", len(h.clients)))
}

// Unregister drops the connection and its watchlist. Safe to call twice.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.ID()
	if current, ok := h.clients[id]; ok && current == client {
		delete(h.clients, id)
		h.registry.Unregister(id)
		h.logger.Debug("Client unregistered", zap.String("conn_id", string(id)), zap.Int("clients", len(h.clients)))
	}
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	client.Close()
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	id := client.ID()

	switch req.Action {
	case protocol.ActionSubscribe:
		syms, err := req.SymbolList()
		if err != nil {
			h.reject(client, req, err)
			return
		}
		if !h.registry.Replace(id, syms) {
			h.logger.Debug("Subscribe for unknown connection", zap.String("conn_id", string(id)))
		}

	case protocol.ActionAddSymbol:
		sym, err := req.Symbol()
		if err != nil {
			h.reject(client, req, err)
			return
		}
		h.registry.Add(id, sym)

	case protocol.ActionRemoveSymbol:
		sym, err := req.Symbol()
		if err != nil {
			h.reject(client, req, err)
			return
		}
		h.registry.Remove(id, sym)

	default:
		metrics.CommandsTotal.WithLabelValues("unknown", "rejected").Inc()
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
		return
	}

	metrics.CommandsTotal.WithLabelValues(req.Action, "ok").Inc()
}

// Deliver pushes payload onto the connection's send buffer without waiting.
func (h *Hub) Deliver(id watchlist.ConnectionID, payload []byte) error {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return ErrUnknownConnection
	}
	if !client.SendBytes(payload) {
		return ErrDeliveryFailed
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client and releases all watchlists.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	h.registry.Reset()
	metrics.ConnectedClients.Set(0)
	h.logger.Info("Hub shut down")
}

// reject leaves the watchlist as it was and tells the client why.
func (h *Hub) reject(c ClientInterface, req protocol.WSRequest, err error) {
	metrics.CommandsTotal.WithLabelValues(req.Action, "rejected").Inc()
	h.logger.Warn("Ignoring malformed command",
		zap.String("conn_id", string(c.ID())),
		zap.String("action", req.Action),
		zap.Error(err),
	)
	h.sendError(c, req.ID, err.Error())
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Message: msg})
}
