package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"positionGuard/internal/domain"
	"positionGuard/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.ActionJournal interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/position_journal.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := newWithDB(db, cfg.Logger)
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

func newWithDB(db *sql.DB, logger ports.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		symbol TEXT NOT NULL,
		position_side TEXT NOT NULL,
		order_side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		order_id INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL -- unix milliseconds
	);
	CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions (created_at);
	CREATE INDEX IF NOT EXISTS idx_actions_symbol ON actions (symbol, created_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Record saves a new action and returns its assigned ID.
func (r *Repository) Record(ctx context.Context, a *domain.Action) (int64, error) {
	const query = `
	INSERT INTO actions (kind, symbol, position_side, order_side, quantity, price, order_id, dry_run, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx, query,
		string(a.Kind), a.Symbol, string(a.PositionSide), string(a.OrderSide),
		a.Quantity, a.Price, a.OrderID, a.DryRun, a.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s action for symbol %s: %w: %w", a.Kind, a.Symbol, ports.ErrInsertFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for action %s: %w: %w", a.Symbol, ports.ErrInsertFailed, err)
	}
	a.ID = id // Update the domain object with the ID
	r.logger.Debug(ctx, "Action recorded", map[string]interface{}{"actionID": id, "kind": a.Kind, "symbol": a.Symbol})
	return id, nil
}

// Recent returns up to limit actions, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*domain.Action, error) {
	const query = `
	SELECT id, kind, symbol, position_side, order_side, quantity, price, order_id, dry_run, created_at
	FROM actions
	ORDER BY created_at DESC, id DESC
	LIMIT ?`

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent actions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	actions := make([]*domain.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w: %w", ports.ErrQueryFailed, err)
		}
		actions = append(actions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return actions, nil
}

// CountSince returns how many executed actions were recorded at or after since.
// Dry-run rows are not counted.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM actions WHERE created_at >= ? AND dry_run = 0`

	var n int
	if err := r.db.QueryRowContext(ctx, query, since.UnixMilli()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actions since %s: %w: %w", since.Format(time.RFC3339), ports.ErrQueryFailed, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(s scanner) (*domain.Action, error) {
	var (
		a                        domain.Action
		kind, posSide, orderSide string
		createdMillis            int64
	)
	if err := s.Scan(&a.ID, &kind, &a.Symbol, &posSide, &orderSide, &a.Quantity, &a.Price, &a.OrderID, &a.DryRun, &createdMillis); err != nil {
		return nil, err
	}
	a.Kind = domain.ActionKind(kind)
	a.PositionSide = domain.PositionSide(posSide)
	a.OrderSide = domain.OrderSide(orderSide)
	a.CreatedAt = time.UnixMilli(createdMillis)
	return &a, nil
}

var _ ports.ActionJournal = (*Repository)(nil)
