package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	infrabackup "streampay/internal/infrastructure/backup"
	"streampay/pkg/backup"
)

type snapshotListOutput struct {
	Snapshots []string `json:"snapshots"`
}

// NewSnapshotCommand groups the ledger snapshot commands. Snapshots live in
// the configured backup directory, or --dir.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, list and restore ledger snapshots",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "snapshot directory (overrides config)")

	snapshots := func() (*infrabackup.LedgerSnapshots, error) {
		cfg, err := rootOpts.config()
		if err != nil {
			return nil, err
		}
		if dir == "" {
			dir = cfg.Backup.Directory
		}
		storage, err := backup.NewFileStorage(dir)
		if err != nil {
			return nil, err
		}
		return infrabackup.NewLedgerSnapshots(storage), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Snapshot the whole ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := snapshots()
			if err != nil {
				return err
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			log := rootOpts.logger(cfg)
			ledger, closeLedger, err := rootOpts.OpenLedger(cfg, log)
			if err != nil {
				return err
			}
			defer closeLedger()

			sched := infrabackup.NewScheduler(snaps, ledger, infrabackup.Config{}, log)
			name, err := sched.RunOnce(cmd.Context(), "manual")
			if err != nil {
				return err
			}
			return rootOpts.printer(cmd.OutOrStdout()).result(map[string]string{"name": name}, [][2]string{
				{"name", name},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := snapshots()
			if err != nil {
				return err
			}
			names, err := snaps.List(cmd.Context())
			if err != nil {
				return err
			}

			text := make([][2]string, 0, len(names))
			for i, name := range names {
				text = append(text, [2]string{strconv.Itoa(i + 1), name})
			}
			return rootOpts.printer(cmd.OutOrStdout()).result(snapshotListOutput{Snapshots: names}, text)
		},
	})

	var dryRun, verify bool
	restore := &cobra.Command{
		Use:   "restore [name]",
		Short: "Replace the ledger with a snapshot (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := infrabackup.LatestSnapshot
			if len(args) == 1 {
				name = args[0]
			}
			snaps, err := snapshots()
			if err != nil {
				return err
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}

			opts := infrabackup.RestoreOptions{DryRun: dryRun}
			if verify {
				if opts.ProgramID, err = rootOpts.programID(cfg); err != nil {
					return err
				}
			}

			log := rootOpts.logger(cfg)
			ledger, closeLedger, err := rootOpts.OpenLedger(cfg, log)
			if err != nil {
				return err
			}
			defer closeLedger()

			report, err := infrabackup.NewRestoreService(snaps, ledger, log).RestoreFromBackup(cmd.Context(), name, opts)
			if err != nil {
				return err
			}
			return rootOpts.printer(cmd.OutOrStdout()).result(report, [][2]string{
				{"name", report.Name},
				{"accounts", strconv.Itoa(report.Accounts)},
				{"records", strconv.Itoa(report.Records)},
				{"total_balance", strconv.FormatUint(report.TotalBalance, 10)},
				{"dry_run", strconv.FormatBool(dryRun)},
			})
		},
	}
	restore.Flags().BoolVar(&dryRun, "dry-run", false, "verify the snapshot without touching the ledger")
	restore.Flags().BoolVar(&verify, "verify", true, "decode every program-owned record before restoring")
	cmd.AddCommand(restore)

	return cmd
}
