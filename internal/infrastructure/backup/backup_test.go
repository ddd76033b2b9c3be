package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/infrastructure/repositories/memory"
	"streampay/pkg/backup"
)

var (
	programID = domain.MustParseAddress("ALG2KRazJ9Gnh6Tyndq4eEDR4tsqP91uC8gmfWEgmxXo")
	alice     = domain.MustParseAddress("9jLkNAaW9E47LQMHvjohy2uAAyr1331bAxgJKFRU7wF6")
	groupAddr = domain.MustParseAddress("AJHa6hQ4gwaxUwiiPHXWdQFTi5ftkxNUjbYbcByXscPf")
)

func newSnapshots(t *testing.T) *LedgerSnapshots {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewLedgerSnapshots(storage)
}

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewMemoryLedger()
	require.NoError(t, ledger.Fund(ctx, alice, 500))
	require.NoError(t, ledger.Restore(ctx, append(mustSnapshot(t, ledger), &domain.Account{
		Address: groupAddr,
		Owner:   programID,
		Data:    domain.EncodeGroup(&domain.GroupRecord{GroupID: 100, Creator: alice, Rate: 10}),
	})))

	snapshots := newSnapshots(t)
	sched := NewScheduler(snapshots, ledger, Config{Interval: time.Hour, Retention: 2}, zap.NewNop().Sugar())
	name, err := sched.RunOnce(ctx, "manual")
	require.NoError(t, err)
	before := mustSnapshot(t, ledger)

	require.NoError(t, ledger.Fund(ctx, alice, 1))

	restore := NewRestoreService(snapshots, ledger, zap.NewNop().Sugar())
	report, err := restore.RestoreFromBackup(ctx, LatestSnapshot, RestoreOptions{ProgramID: programID})
	require.NoError(t, err)
	assert.Equal(t, name, report.Name)
	assert.Equal(t, 2, report.Accounts)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, uint64(500), report.TotalBalance)
	assert.Equal(t, before, mustSnapshot(t, ledger))
}

func TestRestore_DryRunAndCorruptRecord(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewMemoryLedger()
	require.NoError(t, ledger.Restore(ctx, []*domain.Account{
		{Address: groupAddr, Owner: programID, Data: []byte("garbage")},
	}))

	snapshots := newSnapshots(t)
	_, err := NewScheduler(snapshots, ledger, Config{Interval: time.Hour, Retention: 1}, zap.NewNop().Sugar()).RunOnce(ctx, "manual")
	require.NoError(t, err)

	restore := NewRestoreService(snapshots, memory.NewMemoryLedger(), zap.NewNop().Sugar())
	_, err = restore.RestoreFromBackup(ctx, LatestSnapshot, RestoreOptions{ProgramID: programID})
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)

	target := memory.NewMemoryLedger()
	restore = NewRestoreService(snapshots, target, zap.NewNop().Sugar())
	report, err := restore.RestoreFromBackup(ctx, LatestSnapshot, RestoreOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accounts)
	assert.Empty(t, mustSnapshot(t, target), "dry run leaves the ledger alone")
}

func TestRestore_NoSnapshots(t *testing.T) {
	restore := NewRestoreService(newSnapshots(t), memory.NewMemoryLedger(), zap.NewNop().Sugar())
	_, err := restore.RestoreFromBackup(context.Background(), LatestSnapshot, RestoreOptions{})
	assert.Error(t, err)
}

func TestScheduler_RetentionAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := newSnapshots(t)
	sched := NewScheduler(snapshots, memory.NewMemoryLedger(), Config{Interval: 5 * time.Millisecond, Retention: 2}, zap.NewNop().Sugar())
	outcomes := make(chan error, 100)
	sched.OnSnapshot(func(err error) {
		select {
		case outcomes <- err:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	for i := 0; i < 4; i++ {
		select {
		case err := <-outcomes:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not run")
		}
	}
	sched.Stop()
	sched.Stop()
	<-done

	names, err := snapshots.List(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(names), 3)
	assert.GreaterOrEqual(t, len(names), 2)
}

func TestScheduler_LedgerFailure(t *testing.T) {
	sched := NewScheduler(newSnapshots(t), failingLedger{memory.NewMemoryLedger()}, Config{Interval: time.Hour, Retention: 1}, zap.NewNop().Sugar())
	_, err := sched.RunOnce(context.Background(), "manual")
	assert.ErrorContains(t, err, "ledger offline")
}

type failingLedger struct {
	*memory.MemoryLedger
}

func (failingLedger) Snapshot(context.Context) ([]*domain.Account, error) {
	return nil, errors.New("ledger offline")
}

func mustSnapshot(t *testing.T, ledger *memory.MemoryLedger) []*domain.Account {
	t.Helper()
	snap, err := ledger.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}
