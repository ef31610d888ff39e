package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"positionGuard/config"
	"positionGuard/internal/domain"
)

func TestStopLossPrice(t *testing.T) {
	assert.Equal(t, 99.5, StopLossPrice(100, domain.Long, 0.005))
	assert.Equal(t, 100.5, StopLossPrice(100, domain.Short, 0.005))
	assert.InDelta(t, 2985.0, StopLossPrice(3000, domain.Long, 0.005), 1e-9)
}

func TestProfitFraction(t *testing.T) {
	tests := []struct {
		name string
		pos  domain.Position
		want float64
	}{
		{"long up", domain.Position{Side: domain.Long, EntryPrice: 100, MarkPrice: 101}, 0.01},
		{"short down", domain.Position{Side: domain.Short, EntryPrice: 100, MarkPrice: 99}, 0.01},
		{"long down", domain.Position{Side: domain.Long, EntryPrice: 100, MarkPrice: 98}, -0.02},
		{"zero entry", domain.Position{Side: domain.Long, EntryPrice: 0, MarkPrice: 101}, 0},
		{"zero mark", domain.Position{Side: domain.Short, EntryPrice: 100, MarkPrice: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProfitFraction(&tt.pos))
		})
	}
}

func TestSplitQuantity(t *testing.T) {
	c, r := SplitQuantity(3, 0.5)
	assert.Equal(t, 1.5, c)
	assert.Equal(t, 1.5, r)

	c, r = SplitQuantity(0.3, 0.3)
	assert.InDelta(t, 0.09, c, 1e-12)
	assert.InDelta(t, 0.21, r, 1e-12)
}

func TestSymbolAllowed(t *testing.T) {
	cfg := config.Default()
	assert.True(t, SymbolAllowed(cfg, "ETH-USDT"), "empty lists allow everything")

	cfg.DisabledSymbols = []string{"BTCUSDT"}
	assert.False(t, SymbolAllowed(cfg, "BTC-USDT"), "deny-list matches across separators")
	assert.True(t, SymbolAllowed(cfg, "ETH-USDT"))

	cfg.EnabledSymbols = []string{"eth-usdt"}
	assert.True(t, SymbolAllowed(cfg, "ETH-USDT"))
	assert.False(t, SymbolAllowed(cfg, "SOL-USDT"))

	cfg.DisabledSymbols = []string{"ETH-USDT"}
	assert.False(t, SymbolAllowed(cfg, "ETH-USDT"), "deny-list wins over allow-list")
}

func TestScreen(t *testing.T) {
	cfg := config.Default() // min 10, max 1000
	cfg.DisabledSymbols = []string{"BTC-USDT"}

	assert.Equal(t, SkipSymbol, Screen(cfg, &domain.Position{Symbol: "BTC-USDT", Notional: 500}))
	assert.Equal(t, SkipTooSmall, Screen(cfg, &domain.Position{Symbol: "ETH-USDT", Notional: -9.99}))
	assert.Equal(t, SkipOversized, Screen(cfg, &domain.Position{Symbol: "ETH-USDT", Notional: -1000.01}))
	assert.Equal(t, SkipNone, Screen(cfg, &domain.Position{Symbol: "ETH-USDT", Notional: 10}))
	assert.Equal(t, SkipNone, Screen(cfg, &domain.Position{Symbol: "ETH-USDT", Notional: 1000}))
}

func TestCounters_ResetOncePerDate(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)
	c := NewCounters(day1)
	c.RecordTrade()
	c.RecordError()

	assert.False(t, c.ResetIfNewDay(day1.Add(30*time.Second)))
	assert.Equal(t, 1, c.DailyTrades)

	day2 := day1.Add(2 * time.Minute)
	assert.True(t, c.ResetIfNewDay(day2))
	assert.Equal(t, 0, c.DailyTrades)
	assert.Equal(t, 0, c.ErrorCount)

	c.RecordTrade()
	assert.False(t, c.ResetIfNewDay(day2.Add(time.Hour)))
	assert.Equal(t, 1, c.DailyTrades)
}

func TestCounters_EmergencyReason(t *testing.T) {
	cfg := config.Default()
	cfg.RiskManagement.MaxDailyTrades = 2
	cfg.RiskManagement.ErrorThreshold = 2
	c := NewCounters(time.Now())

	assert.Empty(t, c.EmergencyReason(cfg))

	c.RecordTrade()
	c.RecordTrade()
	assert.Contains(t, c.EmergencyReason(cfg), "daily trade limit")

	c.DailyTrades = 0
	c.RecordError()
	c.RecordError()
	assert.Contains(t, c.EmergencyReason(cfg), "error threshold")

	cfg.EmergencyStop = true
	assert.Equal(t, "emergency_stop flag set", c.EmergencyReason(cfg))
}

func TestCounters_EngageRelease(t *testing.T) {
	c := NewCounters(time.Now())
	assert.True(t, c.Engage())
	assert.False(t, c.Engage())
	assert.True(t, c.Release())
	assert.False(t, c.Release())
}
