package backup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
)

// LatestSnapshot selects the newest snapshot in RestoreFromBackup.
const LatestSnapshot = "latest"

type RestoreService struct {
	snapshots *LedgerSnapshots
	ledger    ports.Ledger
	logger    *zap.SugaredLogger
}

func NewRestoreService(snapshots *LedgerSnapshots, ledger ports.Ledger, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{
		snapshots: snapshots,
		ledger:    ledger,
		logger:    logger,
	}
}

type RestoreOptions struct {
	// ProgramID enables record verification: every account it owns must
	// decode as a group, stream, treasury or empty holder.
	ProgramID domain.Address
	DryRun    bool
}

type RestoreReport struct {
	Name         string `json:"name"`
	Accounts     int    `json:"accounts"`
	Records      int    `json:"records"`
	TotalBalance uint64 `json:"total_balance"`
}

// RestoreFromBackup loads a snapshot and replaces the ledger with it.
func (rs *RestoreService) RestoreFromBackup(ctx context.Context, name string, opts RestoreOptions) (*RestoreReport, error) {
	if name == LatestSnapshot {
		latest, err := rs.snapshots.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, errors.New("no snapshots to restore")
		}
		name = latest
	}
	rs.logger.Infow("starting restore", "name", name, "dry_run", opts.DryRun)

	snap, err := rs.snapshots.Restore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot %s has unsupported version %q", name, snap.Version)
	}

	report := &RestoreReport{Name: name, Accounts: len(snap.Items)}
	seen := make(map[domain.Address]bool, len(snap.Items))
	for _, acct := range snap.Items {
		if acct == nil {
			return nil, fmt.Errorf("snapshot %s contains an empty account", name)
		}
		if seen[acct.Address] {
			return nil, fmt.Errorf("snapshot %s lists %s twice", name, acct.Address)
		}
		seen[acct.Address] = true

		total, err := domain.CheckedAdd(report.TotalBalance, acct.Balance)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s balances overflow: %w", name, err)
		}
		report.TotalBalance = total

		if !opts.ProgramID.IsZero() && acct.Owner == opts.ProgramID {
			if err := verifyRecord(acct); err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", name, err)
			}
			report.Records++
		}
	}

	if opts.DryRun {
		return report, nil
	}
	if err := rs.ledger.Restore(ctx, snap.Items); err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}

	rs.logger.Infow("restore completed", "name", name, "accounts", report.Accounts, "total_balance", report.TotalBalance)
	return report, nil
}

func verifyRecord(acct *domain.Account) error {
	if len(acct.Data) == 0 {
		return nil
	}
	if _, err := domain.DecodeGroup(acct.Data); err == nil {
		return nil
	}
	if _, err := domain.DecodeStream(acct.Data); err == nil {
		return nil
	}
	if _, err := domain.DecodeTreasury(acct.Data); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrCorruptRecord, acct.Address)
}
