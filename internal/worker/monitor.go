package worker

import (
	"context"
	"time"

	"coin-ledger/internal/fraud"
	"coin-ledger/internal/pub"
	"coin-ledger/internal/repository"

	"go.uber.org/zap"
)

// MonitorConfig carries the monitor intervals and thresholds. Zero
// values fall back to defaults.
type MonitorConfig struct {
	TrendInterval    time.Duration // fraud trend scan cadence
	RefreshInterval  time.Duration // suspicious set rebuild cadence
	PurgeInterval    time.Duration // pattern purge cadence
	TrendThreshold   int           // high-score tx count per hour that raises an alert
	HighScore        int           // score counted as high for trend purposes
	PatternRetention time.Duration // learned pattern lifetime
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.TrendInterval == 0 {
		c.TrendInterval = 5 * time.Minute
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = time.Hour
	}
	if c.TrendThreshold == 0 {
		c.TrendThreshold = 10
	}
	if c.HighScore == 0 {
		c.HighScore = 70
	}
	if c.PatternRetention == 0 {
		c.PatternRetention = 7 * 24 * time.Hour
	}
	return c
}

// Monitor runs the periodic background passes: fraud trend analysis,
// suspicious set refresh from persisted risk profiles and pattern cache
// cleanup. Failures are logged and never affect transaction processing.
type Monitor struct {
	txRepo     repository.TransactionRepository
	walletRepo repository.WalletRepository
	analyzer   *fraud.Analyzer
	notifier   pub.Notifier
	cfg        MonitorConfig
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewMonitor(
	txRepo repository.TransactionRepository,
	walletRepo repository.WalletRepository,
	analyzer *fraud.Analyzer,
	notifier pub.Notifier,
	cfg MonitorConfig,
	logger *zap.Logger,
) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		analyzer:   analyzer,
		notifier:   notifier,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches all background workers.
func (m *Monitor) Start() {
	m.logger.Info("starting ledger background monitor",
		zap.Duration("trend_interval", m.cfg.TrendInterval),
		zap.Duration("refresh_interval", m.cfg.RefreshInterval))

	go m.run(m.cfg.TrendInterval, m.ScanFraudTrend)
	go m.run(m.cfg.RefreshInterval, m.RefreshSuspicious)
	go m.run(m.cfg.PurgeInterval, m.PurgePatterns)
}

// Stop stops all background workers.
func (m *Monitor) Stop() {
	m.cancel()
}

func (m *Monitor) run(interval time.Duration, pass func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			pass(m.ctx)
		}
	}
}

// ScanFraudTrend counts high-score transactions in the trailing hour and
// raises a fraudTrendAlert when they exceed the threshold.
func (m *Monitor) ScanFraudTrend(ctx context.Context) {
	windowStart := time.Now().Add(-time.Hour)
	count, err := m.txRepo.CountHighRiskSince(ctx, windowStart, m.cfg.HighScore)
	if err != nil {
		m.logger.Error("fraud trend scan failed", zap.Error(err))
		return
	}
	if count <= m.cfg.TrendThreshold {
		return
	}

	m.logger.Warn("fraud trend threshold exceeded",
		zap.Int("count", count), zap.Int("threshold", m.cfg.TrendThreshold))

	m.notifier.FraudTrendAlert(ctx, &pub.FraudTrendAlertEvent{
		WindowStart: windowStart,
		Count:       count,
		Threshold:   m.cfg.TrendThreshold,
		Timestamp:   time.Now(),
	})
}

// RefreshSuspicious rebuilds the in-memory suspicious set from the
// persisted wallet risk profiles.
func (m *Monitor) RefreshSuspicious(ctx context.Context) {
	ids, err := m.walletRepo.ListFlaggedUserIDs(ctx)
	if err != nil {
		m.logger.Error("suspicious set refresh failed", zap.Error(err))
		return
	}
	m.analyzer.Suspicious().Replace(ids)
	m.logger.Debug("suspicious set refreshed", zap.Int("accounts", len(ids)))
}

// PurgePatterns drops learned fraud patterns past their retention.
func (m *Monitor) PurgePatterns(ctx context.Context) {
	removed := m.analyzer.Patterns().PurgeOlderThan(time.Now().Add(-m.cfg.PatternRetention))
	if removed > 0 {
		m.logger.Info("purged expired fraud patterns", zap.Int("removed", removed))
	}
}
