package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	ActionSubscribe    = "subscribe"
	ActionAddSymbol    = "add_symbol"
	ActionRemoveSymbol = "remove_symbol"
)

const (
	TypePriceUpdate = "price_update"
	TypeError       = "error"
)

var (
	ErrMissingPayload = errors.New("missing payload")
	ErrNullSymbol     = errors.New("symbol must not be null")
)

type WSRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
	ID      string          `json:"id,omitempty"`
}

type WSResponse struct {
	Type    string      `json:"type"`         // "price_update", "error"
	ID      string      `json:"id,omitempty"` // Matches request ID
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PriceUpdate is the outbound tick message. Data is always present, an
// empty watchlist intersection is sent as [].
type PriceUpdate struct {
	Type string                `json:"type"`
	Data []models.PricedSymbol `json:"data"`
}

func NewPriceUpdate(prices []models.PricedSymbol) PriceUpdate {
	if prices == nil {
		prices = []models.PricedSymbol{}
	}
	return PriceUpdate{Type: TypePriceUpdate, Data: prices}
}

// SymbolList decodes a subscribe payload.
func (r WSRequest) SymbolList() ([]string, error) {
	if len(r.Payload) == 0 {
		return nil, ErrMissingPayload
	}
	// null decodes cleanly into a slice, so check for it explicitly
	var raw []*string
	if err := json.Unmarshal(r.Payload, &raw); err != nil {
		return nil, fmt.Errorf("payload must be a list of symbols: %w", err)
	}
	if raw == nil {
		return nil, ErrMissingPayload
	}
	syms := make([]string, len(raw))
	for i, s := range raw {
		if s == nil {
			return nil, fmt.Errorf("symbol %d: %w", i, ErrNullSymbol)
		}
		syms[i] = *s
	}
	return syms, nil
}

// Symbol decodes an add_symbol / remove_symbol payload.
func (r WSRequest) Symbol() (string, error) {
	if len(r.Payload) == 0 {
		return "", ErrMissingPayload
	}
	var sym *string
	if err := json.Unmarshal(r.Payload, &sym); err != nil {
		return "", fmt.Errorf("payload must be a symbol string: %w", err)
	}
	if sym == nil {
		return "", ErrNullSymbol
	}
	return *sym, nil
}
