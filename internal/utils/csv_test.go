package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionGuard/internal/domain"
)

func TestWriteActionsToCSV(t *testing.T) {
	at := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	actions := []*domain.Action{
		{ID: 2, Kind: domain.ActionBreakEven, Symbol: "ETH-USDT", PositionSide: domain.Long, OrderSide: domain.Sell, Quantity: 1.5, Price: 100, OrderID: 77, CreatedAt: at},
		{ID: 1, Kind: domain.ActionPartialClose, Symbol: "ETH-USDT", PositionSide: domain.Long, OrderSide: domain.Sell, Quantity: 1.5, DryRun: true, CreatedAt: at},
	}
	path := filepath.Join(t.TempDir(), "journal.csv")

	require.NoError(t, WriteActionsToCSV(actions, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, actionHeader, rows[0])
	assert.Equal(t, []string{"2", "2024-06-03T12:00:00Z", "BREAK_EVEN", "ETH-USDT", "LONG", "SELL", "1.5", "100", "77", "false"}, rows[1])
	assert.Equal(t, "true", rows[2][9])
}
