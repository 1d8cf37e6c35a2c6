package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/crypto_prices_etl/internal/domain"
	"go.uber.org/zap"
)

const DefaultInterval = 120 * time.Second

// PipelineStatus is a point-in-time view of the driver loop.
type PipelineStatus struct {
	State        domain.State        `json:"state"`
	Interval     time.Duration       `json:"interval"`
	Cycles       int64               `json:"cycles"`
	FailedCycles int64               `json:"failed_cycles"`
	RowsSaved    int64               `json:"rows_saved"`
	RowsFailed   int64               `json:"rows_failed"`
	LastCycle    *domain.CycleReport `json:"last_cycle,omitempty"`
}

// PipelineService runs the extract-then-persist loop. Cycles never overlap:
// Run executes them one after another on the calling goroutine.
type PipelineService struct {
	source   domain.MarketDataSource
	repo     domain.SnapshotRepository
	logger   *zap.Logger
	interval time.Duration

	mu          sync.RWMutex
	status      PipelineStatus
	subscribers []func(domain.CycleReport)

	timeNow    func() time.Time                                // For testing
	newCycleID func() string                                   // For testing
	sleep      func(ctx context.Context, d time.Duration) bool // For testing
}

func NewPipelineService(source domain.MarketDataSource, repo domain.SnapshotRepository, interval time.Duration, logger *zap.Logger) *PipelineService {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		source:   source,
		repo:     repo,
		logger:   logger,
		interval: interval,
		status: PipelineStatus{
			State:    domain.StateIdle,
			Interval: interval,
		},
		timeNow:    time.Now,
		newCycleID: uuid.NewString,
		sleep:      sleepContext,
	}
}

// OnCycle registers fn to receive every finished cycle report. fn runs on
// the loop goroutine and must not block.
func (s *PipelineService) OnCycle(fn func(domain.CycleReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *PipelineService) State() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.State
}

func (s *PipelineService) Status() PipelineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.LastCycle != nil {
		last := *st.LastCycle
		st.LastCycle = &last
	}
	return st
}

func (s *PipelineService) setState(state domain.State) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

// Run loops until ctx is cancelled. Cancellation is observed between cycles
// and while sleeping; a cycle in flight runs to completion. Run returns nil
// on a graceful stop.
func (s *PipelineService) Run(ctx context.Context) error {
	s.logger.Info("Pipeline started", zap.Duration("interval", s.interval))

	for ctx.Err() == nil {
		s.RunCycle(context.WithoutCancel(ctx))

		s.setState(domain.StateSleeping)
		if !s.sleep(ctx, s.interval) {
			break
		}
	}

	s.setState(domain.StateStopped)
	s.logger.Info("Pipeline stopped")
	return nil
}

// RunCycle performs one extract-then-persist pass. Extraction failures skip
// the cycle; a failed row is logged and the remaining rows are still saved.
func (s *PipelineService) RunCycle(ctx context.Context) (report domain.CycleReport) {
	report.CycleID = s.newCycleID()
	report.StartedAt = s.timeNow().UTC()
	log := s.logger.With(zap.String("cycle_id", report.CycleID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Cycle panicked, skipping rest of cycle", zap.Any("panic", r), zap.Stack("stack"))
			report.Error = fmt.Sprintf("panic: %v", r)
		}
		report.Duration = s.timeNow().Sub(report.StartedAt)
		s.finish(report)
	}()

	s.setState(domain.StateExtracting)
	rows, err := s.source.Extract(ctx)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
			fields = append(fields, zap.Int("status_code", apiErr.StatusCode))
		}
		log.Error("Extraction failed, skipping cycle", fields...)
		report.Error = err.Error()
		return report
	}

	report.Extracted = len(rows)
	if len(rows) > 0 {
		report.ObservedAt = rows[0].ObservedAt
	}
	log.Info("Extracted market data", zap.Int("rows", len(rows)))

	s.setState(domain.StateSaving)
	for i := range rows {
		row := &rows[i]
		if err := s.repo.SaveSnapshot(ctx, row); err != nil {
			log.Error("Failed to save snapshot",
				zap.String("coin_id", row.CoinID),
				zap.Time("observed_at", row.ObservedAt),
				zap.Error(err))
			report.Failed++
			continue
		}
		report.Saved++
		log.Debug("Saved snapshot",
			zap.String("coin_id", row.CoinID),
			zap.Int64("internal_id", row.InternalID),
			zap.Time("observed_at", row.ObservedAt))
	}

	log.Info("Cycle finished",
		zap.Int("extracted", report.Extracted),
		zap.Int("saved", report.Saved),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", s.timeNow().Sub(report.StartedAt)))
	return report
}

func (s *PipelineService) finish(report domain.CycleReport) {
	s.mu.Lock()
	s.status.Cycles++
	if report.Error != "" {
		s.status.FailedCycles++
	}
	s.status.RowsSaved += int64(report.Saved)
	s.status.RowsFailed += int64(report.Failed)
	s.status.LastCycle = &report
	subs := make([]func(domain.CycleReport), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		s.notify(fn, report)
	}
}

func (s *PipelineService) notify(fn func(domain.CycleReport), report domain.CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cycle subscriber panicked",
				zap.String("cycle_id", report.CycleID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	fn(report)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
