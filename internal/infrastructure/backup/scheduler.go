package backup

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/pkg/backup"
)

// SnapshotVersion tags the snapshot layout written by this package.
const SnapshotVersion = "1"

type LedgerSnapshots = backup.Service[*domain.Account]

func NewLedgerSnapshots(storage backup.Storage) *LedgerSnapshots {
	return backup.NewService[*domain.Account](storage, SnapshotVersion)
}

// Scheduler writes periodic ledger snapshots and keeps the newest Retention.
type Scheduler struct {
	snapshots *LedgerSnapshots
	ledger    ports.Ledger
	interval  time.Duration
	retention int
	observe   func(error)
	logger    *zap.SugaredLogger

	stopOnce sync.Once
	stopChan chan struct{}
}

type Config struct {
	Interval  time.Duration
	Retention int
}

func NewScheduler(
	snapshots *LedgerSnapshots,
	ledger ports.Ledger,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		snapshots: snapshots,
		ledger:    ledger,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		observe:   func(error) {},
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// OnSnapshot registers fn, called with the outcome of every scheduled run.
func (s *Scheduler) OnSnapshot(fn func(error)) {
	s.observe = fn
}

// Start runs a snapshot immediately and then every interval until Stop or
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scheduler) run(ctx context.Context) {
	name, err := s.RunOnce(ctx, "scheduled")
	s.observe(err)
	if err != nil {
		s.logger.Errorw("scheduled snapshot failed", "error", err)
		return
	}

	pruned, err := s.snapshots.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Warnw("failed to prune old snapshots", "error", err)
		return
	}
	if len(pruned) > 0 {
		s.logger.Infow("pruned old snapshots", "latest", name, "deleted", pruned)
	}
}

// RunOnce snapshots the whole ledger and returns the snapshot name.
func (s *Scheduler) RunOnce(ctx context.Context, kind string) (string, error) {
	accounts, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}

	var total uint64
	for _, acct := range accounts {
		total += acct.Balance
	}
	name, err := s.snapshots.Create(ctx, accounts, map[string]string{
		"kind":          kind,
		"account_count": strconv.Itoa(len(accounts)),
		"total_balance": strconv.FormatUint(total, 10),
	})
	if err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.Infow("ledger snapshot written", "name", name, "accounts", len(accounts))
	return name, nil
}
