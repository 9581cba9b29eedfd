package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appinv "github.com/erp/inventory-ledger/internal/application/inventory"
	"go.uber.org/zap"
)

var (
	// ErrSchedulerNotRunning is returned by TriggerNow on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	// ErrInvalidConfig is returned for an enabled scheduler without an interval
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

// ReservationExpirer expires overdue reservations and releases their stock
type ReservationExpirer interface {
	ExpireDue(ctx context.Context, asOf time.Time) (*appinv.ExpiredReservationStats, error)
}

// ReservationExpirySchedulerConfig holds configuration for the expiry sweep
type ReservationExpirySchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval between sweeps
	Interval time.Duration

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration

	// RunOnStart sweeps once immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultReservationExpirySchedulerConfig returns default configuration
func DefaultReservationExpirySchedulerConfig() ReservationExpirySchedulerConfig {
	return ReservationExpirySchedulerConfig{
		Enabled:    true,
		Interval:   time.Minute,
		RunTimeout: 5 * time.Minute,
		RunOnStart: true,
	}
}

// ReservationExpiryScheduler periodically expires overdue reservations
type ReservationExpiryScheduler struct {
	expirer   ReservationExpirer
	logger    *zap.Logger
	config    ReservationExpirySchedulerConfig
	now       func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	runMu     sync.Mutex
	mu        sync.Mutex
	isRunning bool
}

// NewReservationExpiryScheduler creates a new scheduler
func NewReservationExpiryScheduler(
	expirer ReservationExpirer,
	logger *zap.Logger,
	config ReservationExpirySchedulerConfig,
) (*ReservationExpiryScheduler, error) {
	if config.Enabled && config.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultReservationExpirySchedulerConfig().RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpiryScheduler{
		expirer: expirer,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}, nil
}

// Start starts the sweep loop
func (s *ReservationExpiryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reservation expiry scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.Info("Reservation expiry scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep, bounded by ctx
func (s *ReservationExpiryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reservation expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reservation expiry scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerNow runs one sweep synchronously
func (s *ReservationExpiryScheduler) TriggerNow(ctx context.Context) (*appinv.ExpiredReservationStats, error) {
	if !s.IsRunning() {
		return nil, ErrSchedulerNotRunning
	}
	return s.sweep(ctx)
}

// IsRunning returns whether the scheduler is running
func (s *ReservationExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *ReservationExpiryScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_, _ = s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reservation expiry loop stopping")
			return
		case <-ticker.C:
			_, _ = s.sweep(ctx)
		}
	}
}

// sweep runs one expiry pass. Overlapping sweeps are serialized.
func (s *ReservationExpiryScheduler) sweep(ctx context.Context) (*appinv.ExpiredReservationStats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	stats, err := s.expirer.ExpireDue(runCtx, s.now())
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("Reservation expiry sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	if stats.TotalExpired > 0 {
		s.logger.Info("Reservation expiry sweep completed",
			zap.Duration("duration", duration),
			zap.Int("expired", stats.SuccessReleased),
			zap.Int("failed", stats.FailedReleases),
		)
	}
	return stats, nil
}
