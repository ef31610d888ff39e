package utils

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"positionGuard/internal/domain"
)

var actionHeader = []string{"id", "created_at", "kind", "symbol", "position_side", "order_side", "quantity", "price", "order_id", "dry_run"}

// WriteActions writes journal rows as CSV to w.
func WriteActions(w io.Writer, actions []*domain.Action) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(actionHeader); err != nil {
		return err
	}
	for _, a := range actions {
		if err := writer.Write([]string{
			strconv.FormatInt(a.ID, 10),
			a.CreatedAt.Format(time.RFC3339),
			string(a.Kind),
			a.Symbol,
			string(a.PositionSide),
			string(a.OrderSide),
			strconv.FormatFloat(a.Quantity, 'f', -1, 64),
			strconv.FormatFloat(a.Price, 'f', -1, 64),
			strconv.FormatInt(a.OrderID, 10),
			strconv.FormatBool(a.DryRun),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteActionsToCSV writes journal rows to filename, replacing it.
func WriteActionsToCSV(actions []*domain.Action, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteActions(file, actions); err != nil {
		return err
	}
	return file.Close()
}
