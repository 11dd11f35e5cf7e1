package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/journal"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/watchlist"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    watchlist.ConnectionID
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Full     bool // SendBytes reports a full buffer
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: watchlist.ConnectionID(id), Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() watchlist.ConnectionID { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
	return !m.Closed
}

func (m *MockClient) SendBytes(b []byte) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Closed || m.Full {
		return false
	}
	m.RawBytes = append(m.RawBytes, string(b))
	return true
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) IsClosed() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Closed
}

// MockDeliverer records price_update payloads per connection
type MockDeliverer struct {
	Updates map[watchlist.ConnectionID][]protocol.PriceUpdate
	Failing map[watchlist.ConnectionID]bool
	Mu      sync.Mutex
}

func NewMockDeliverer() *MockDeliverer {
	return &MockDeliverer{
		Updates: make(map[watchlist.ConnectionID][]protocol.PriceUpdate),
		Failing: make(map[watchlist.ConnectionID]bool),
	}
}

func (m *MockDeliverer) Deliver(id watchlist.ConnectionID, payload []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Failing[id] {
		return errors.New("channel closed")
	}
	var update protocol.PriceUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return err
	}
	m.Updates[id] = append(m.Updates[id], update)
	return nil
}

func (m *MockDeliverer) Last(id watchlist.ConnectionID) (protocol.PriceUpdate, bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	u := m.Updates[id]
	if len(u) == 0 {
		return protocol.PriceUpdate{}, false
	}
	return u[len(u)-1], true
}

func (m *MockDeliverer) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	n := 0
	for _, u := range m.Updates {
		n += len(u)
	}
	return n
}

// MockPriceSource returns Base + number of calls so far for the symbol and
// records every call
type MockPriceSource struct {
	Base      float64
	Calls     map[string]int
	Forgotten []string
	Mu        sync.Mutex
}

func NewMockPriceSource(base float64) *MockPriceSource {
	return &MockPriceSource{Base: base, Calls: make(map[string]int)}
}

func (m *MockPriceSource) NextPrice(symbol string) float64 {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls[symbol]++
	return m.Base + float64(m.Calls[symbol])
}

func (m *MockPriceSource) Forget(symbol string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Forgotten = append(m.Forgotten, symbol)
	delete(m.Calls, symbol)
}

func (m *MockPriceSource) TotalCalls() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		n += c
	}
	return n
}

// MockSink records published batches and forgotten symbols
type MockSink struct {
	NameVal   string
	Batches   [][]models.PricedSymbol
	Forgotten []string
	Err       error
	Mu        sync.Mutex
}

func (m *MockSink) Forget(symbol string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Forgotten = append(m.Forgotten, symbol)
}

func (m *MockSink) Name() string { return m.NameVal }

func (m *MockSink) Publish(ctx context.Context, prices []models.PricedSymbol) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Batches = append(m.Batches, prices)
	return m.Err
}

type MockRand struct {
	ValFloat float64
}

func (m *MockRand) Float64() float64 { return m.ValFloat }

type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time        { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Closed     bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

type MockKafkaConn struct {
	CreatedTopics []string
	NotReady      bool
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.NotReady {
		return nil, nil
	}
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
	Fail    bool
	Dialed  []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (journal.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.Fail {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}
