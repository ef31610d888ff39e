package app

import (
	"context"
	"sync"
	"time"

	"positionGuard/config"
	"positionGuard/internal/domain"
	"positionGuard/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type notification struct {
	level   domain.NotifyLevel
	message string
}

type mockNotifier struct {
	sent     []notification
	reloaded int
}

func (m *mockNotifier) Notify(ctx context.Context, level domain.NotifyLevel, message string) {
	m.sent = append(m.sent, notification{level: level, message: message})
}

func (m *mockNotifier) Reload(cfg config.NotificationConfig) { m.reloaded++ }

func (m *mockNotifier) count(level domain.NotifyLevel) int {
	n := 0
	for _, s := range m.sent {
		if s.level == level {
			n++
		}
	}
	return n
}

// mockExchange keeps open stop orders per symbol so repeated cycles see what
// earlier ones placed.
type mockExchange struct {
	positions    []domain.Position
	positionsErr error

	openOrders      map[string][]domain.Order
	openOrdersErr   map[string]error
	openOrdersPanic map[string]bool
	placeErr        error
	cancelErr       error

	positionCalls  int
	openOrderCalls int
	placed         []ports.OrderRequest
	cancelled      []int64
	nextID         int64
}

func newMockExchange(positions ...domain.Position) *mockExchange {
	return &mockExchange{
		positions:       positions,
		openOrders:      make(map[string][]domain.Order),
		openOrdersErr:   make(map[string]error),
		openOrdersPanic: make(map[string]bool),
		nextID:          100,
	}
}

func (m *mockExchange) GetPositions(ctx context.Context) ([]domain.Position, error) {
	m.positionCalls++
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	out := make([]domain.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	m.openOrderCalls++
	if m.openOrdersPanic[symbol] {
		panic("unexpected payload")
	}
	if err := m.openOrdersErr[symbol]; err != nil {
		return nil, err
	}
	return append([]domain.Order(nil), m.openOrders[symbol]...), nil
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	m.placed = append(m.placed, req)
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.nextID++
	if req.Type == domain.OrderTypeStopMarket {
		m.openOrders[req.Symbol] = append(m.openOrders[req.Symbol], domain.Order{
			OrderID:   m.nextID,
			Symbol:    req.Symbol,
			Side:      req.Side,
			Type:      req.Type,
			Quantity:  req.Quantity,
			StopPrice: req.StopPrice,
		})
	}
	return &ports.OrderResponse{OrderID: m.nextID, Symbol: req.Symbol, Status: "NEW"}, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	m.cancelled = append(m.cancelled, orderID)
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	kept := m.openOrders[symbol][:0]
	for _, o := range m.openOrders[symbol] {
		if o.OrderID != orderID {
			kept = append(kept, o)
		}
	}
	m.openOrders[symbol] = kept
	return &ports.OrderResponse{OrderID: orderID, Symbol: symbol, Status: "CANCELLED"}, nil
}

// mockSource serves copies of cfg; flags, when set, are returned in order by
// EmergencyStop before falling back to cfg.EmergencyStop.
type mockSource struct {
	cfg       *config.Config
	loadErr   error
	flags     []bool
	flagCalls int
	loads     int
}

func (m *mockSource) Load() (*config.Config, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c := *m.cfg
	return &c, nil
}

func (m *mockSource) EmergencyStop() (bool, error) {
	defer func() { m.flagCalls++ }()
	if m.flagCalls < len(m.flags) {
		return m.flags[m.flagCalls], nil
	}
	return m.cfg.EmergencyStop, nil
}

type mockJournal struct {
	actions []*domain.Action
	err     error
}

func (m *mockJournal) Record(ctx context.Context, a *domain.Action) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.actions = append(m.actions, a)
	a.ID = int64(len(m.actions))
	return a.ID, nil
}

func (m *mockJournal) Recent(ctx context.Context, limit int) ([]*domain.Action, error) {
	return m.actions, nil
}

func (m *mockJournal) CountSince(ctx context.Context, since time.Time) (int, error) {
	return len(m.actions), nil
}
