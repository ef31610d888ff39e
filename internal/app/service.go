package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"positionGuard/config"
	"positionGuard/internal/domain"
	"positionGuard/internal/metrics"
	"positionGuard/internal/ports"
	"positionGuard/internal/risk"
)

const (
	defaultSettleDelay   = 1 * time.Second        // lets the exchange apply a reduction before stops are replaced
	defaultPositionPause = 500 * time.Millisecond // between positions, keeps request bursts small
)

// ConfigSource supplies fresh configuration snapshots to the polling loop.
type ConfigSource interface {
	// Load returns a freshly read and validated configuration.
	Load() (*config.Config, error)
	// EmergencyStop reads only the emergency flag.
	EmergencyStop() (bool, error)
}

// notificationReloader is implemented by notifiers whose channels follow the config.
type notificationReloader interface {
	Reload(cfg config.NotificationConfig)
}

// Status is a point-in-time view of the manager published after every cycle.
type Status struct {
	StartedAt        time.Time `json:"started_at"`
	LastCycleAt      time.Time `json:"last_cycle_at"`
	LastCycleSeconds float64   `json:"last_cycle_seconds"`
	Cycles           int       `json:"cycles"`
	PositionsSeen    int       `json:"positions_seen"`
	DailyTrades      int       `json:"daily_trades"`
	ErrorCount       int       `json:"error_count"`
	LastResetDate    string    `json:"last_reset_date"`
	Halted           bool      `json:"halted"`
	EmergencyReason  string    `json:"emergency_reason,omitempty"`
	DryRun           bool      `json:"dry_run"`
	Testnet          bool      `json:"testnet"`
}

// PositionManager runs the polling loop and applies the protection rules to
// every open position.
type PositionManager struct {
	cfg      *config.Config // Latest valid snapshot, owned by the loop goroutine
	source   ConfigSource
	logger   ports.Logger
	exchange ports.ExchangeClient
	notifier ports.Notifier
	journal  ports.ActionJournal // Optional

	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
	settleDelay   time.Duration
	positionPause time.Duration

	mu     sync.RWMutex // Protects status
	status Status
}

// Option customizes a PositionManager.
type Option func(*PositionManager)

// WithJournal records every executed or simulated action.
func WithJournal(j ports.ActionJournal) Option {
	return func(s *PositionManager) { s.journal = j }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *PositionManager) { s.now = now }
}

// WithSleeper replaces the context-aware sleep used for every pause.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *PositionManager) { s.sleep = sleep }
}

// WithDelays overrides the post-reduction settle delay and the pause between positions.
func WithDelays(settle, pause time.Duration) Option {
	return func(s *PositionManager) {
		s.settleDelay = settle
		s.positionPause = pause
	}
}

// NewPositionManager creates a new application service instance.
func NewPositionManager(
	cfg *config.Config,
	source ConfigSource,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	notifier ports.Notifier,
	opts ...Option,
) (*PositionManager, error) {
	// Validate dependencies
	if cfg == nil || source == nil || logger == nil || exchange == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for PositionManager")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &PositionManager{
		cfg:           cfg,
		source:        source,
		logger:        logger,
		exchange:      exchange,
		notifier:      notifier,
		now:           time.Now,
		sleep:         sleepContext,
		settleDelay:   defaultSettleDelay,
		positionPause: defaultPositionPause,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = Status{StartedAt: s.now(), DryRun: cfg.DryRun, Testnet: cfg.Testnet}
	return s, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start runs cycles until ctx is cancelled. It returns nil on cancellation.
func (s *PositionManager) Start(ctx context.Context) error {
	counters := risk.NewCounters(s.now())
	s.logger.Info(ctx, "Starting position manager", map[string]interface{}{
		"dryRun":        s.cfg.DryRun,
		"testnet":       s.cfg.Testnet,
		"checkInterval": s.cfg.Interval().String(),
	})
	mode := "LIVE"
	if s.cfg.DryRun {
		mode = "DRY RUN"
	}
	s.notifier.Notify(ctx, domain.LevelInfo, fmt.Sprintf("Position manager started (%s)", mode))

	for {
		if err := s.RunCycle(ctx, counters); err != nil {
			break
		}
		if err := s.sleep(ctx, s.cfg.Interval()); err != nil {
			break
		}
	}

	// ctx is done; keep its values for the shutdown notice.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.logger.Info(stopCtx, "Position manager stopped", map[string]interface{}{
		"dailyTrades": counters.DailyTrades,
		"errorCount":  counters.ErrorCount,
	})
	s.notifier.Notify(stopCtx, domain.LevelInfo, "Position manager stopped")
	return nil
}

// RunCycle performs one polling pass. Operational failures are logged, counted
// in c and never returned; the only error is ctx's once it is done.
func (s *PositionManager) RunCycle(ctx context.Context, c *risk.Counters) error {
	op := "RunCycle"
	started := s.now()

	if c.ResetIfNewDay(started) {
		s.logger.Info(ctx, op+": Daily counters reset", map[string]interface{}{"date": c.LastResetDate})
	}

	s.reloadConfig(ctx)
	cfg := s.cfg

	if reason := c.EmergencyReason(cfg); reason != "" {
		s.engageBrake(ctx, c, reason)
		metrics.CyclesTotal.WithLabelValues("halted").Inc()
		s.publish(c, started, 0, reason)
		return ctx.Err()
	}
	if c.Release() {
		s.logger.Info(ctx, op+": Emergency stop cleared, resuming processing")
		s.notifier.Notify(ctx, domain.LevelInfo, "Emergency stop cleared, processing resumed")
		metrics.EmergencyActive.Set(0)
	}

	positions, err := s.exchange.GetPositions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.RecordError()
		metrics.ErrorsTotal.WithLabelValues("fetch_positions").Inc()
		metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
		s.logger.Error(ctx, err, op+": Failed to fetch positions", map[string]interface{}{"errorCount": c.ErrorCount})
		s.notifier.Notify(ctx, domain.LevelError, fmt.Sprintf("Failed to fetch positions: %v", err))
		s.publish(c, started, 0, "")
		return nil
	}
	metrics.PositionsSeen.Set(float64(len(positions)))
	if len(positions) == 0 {
		s.logger.Debug(ctx, op+": No open positions")
	}

	processed := 0
	for i := range positions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if reason := s.midCycleBrake(ctx, cfg, c); reason != "" {
			s.engageBrake(ctx, c, reason)
			s.logger.Warn(ctx, op+": Remaining positions skipped", map[string]interface{}{"remaining": len(positions) - i})
			s.publish(c, started, len(positions), reason)
			metrics.CyclesTotal.WithLabelValues("halted").Inc()
			return nil
		}

		s.handlePosition(ctx, cfg, &positions[i], c)
		processed++

		if i < len(positions)-1 {
			if err := s.sleep(ctx, s.positionPause); err != nil {
				return err
			}
		}
	}

	elapsed := s.now().Sub(started)
	metrics.CyclesTotal.WithLabelValues("processed").Inc()
	metrics.CycleDuration.Observe(elapsed.Seconds())
	s.logger.Info(ctx, op+": Cycle complete", map[string]interface{}{
		"positions":   len(positions),
		"processed":   processed,
		"dailyTrades": c.DailyTrades,
		"errorCount":  c.ErrorCount,
	})
	s.publish(c, started, len(positions), "")
	return nil
}

// reloadConfig replaces the snapshot with a freshly read one. A failed reload
// keeps the previous snapshot. The exchange client is built once, so the
// network and credentials stay at their startup values until a restart.
func (s *PositionManager) reloadConfig(ctx context.Context) {
	cfg, err := s.source.Load()
	if err != nil {
		s.logger.Error(ctx, err, "Config reload failed, keeping previous settings")
		return
	}
	if cfg.Testnet != s.cfg.Testnet || cfg.APIKey != s.cfg.APIKey || cfg.SecretKey != s.cfg.SecretKey {
		s.logger.Warn(ctx, "Credential or network changes take effect after a restart", map[string]interface{}{
			"testnet":    s.cfg.Testnet,
			"newTestnet": cfg.Testnet,
		})
		cfg.Testnet = s.cfg.Testnet
		cfg.APIKey = s.cfg.APIKey
		cfg.SecretKey = s.cfg.SecretKey
	}
	s.cfg = cfg
	if r, ok := s.notifier.(notificationReloader); ok {
		r.Reload(cfg.Notifications)
	}
}

// midCycleBrake re-reads the emergency flag from the file and re-evaluates the
// thresholds against the counters.
func (s *PositionManager) midCycleBrake(ctx context.Context, cfg *config.Config, c *risk.Counters) string {
	check := *cfg
	on, err := s.source.EmergencyStop()
	if err != nil {
		s.logger.Warn(ctx, "Could not re-read emergency flag, using last snapshot", map[string]interface{}{"error": err.Error()})
	} else {
		check.EmergencyStop = on
	}
	return c.EmergencyReason(&check)
}

func (s *PositionManager) engageBrake(ctx context.Context, c *risk.Counters, reason string) {
	fields := map[string]interface{}{
		"reason":      reason,
		"dailyTrades": c.DailyTrades,
		"errorCount":  c.ErrorCount,
	}
	metrics.EmergencyActive.Set(1)
	if c.Engage() {
		s.logger.Warn(ctx, "Emergency stop engaged, processing halted", fields)
		s.notifier.Notify(ctx, domain.LevelWarning, fmt.Sprintf("Emergency stop: %s. Position processing halted.", reason))
		return
	}
	s.logger.Warn(ctx, "Emergency stop active, skipping cycle", fields)
}

func (s *PositionManager) publish(c *risk.Counters, started time.Time, positions int, reason string) {
	metrics.DailyTrades.Set(float64(c.DailyTrades))
	metrics.ErrorCount.Set(float64(c.ErrorCount))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastCycleAt = started
	s.status.LastCycleSeconds = s.now().Sub(started).Seconds()
	s.status.Cycles++
	s.status.PositionsSeen = positions
	s.status.DailyTrades = c.DailyTrades
	s.status.ErrorCount = c.ErrorCount
	s.status.LastResetDate = c.LastResetDate
	s.status.Halted = c.Halted
	s.status.EmergencyReason = reason
	s.status.DryRun = s.cfg.DryRun
	s.status.Testnet = s.cfg.Testnet
}

// Snapshot returns a copy of the latest published status. Safe for concurrent use.
func (s *PositionManager) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
