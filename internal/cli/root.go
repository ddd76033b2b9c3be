package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/infrastructure/repositories"
	"streampay/pkg/config"
	"streampay/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	ProgramID  string
	Format     string // "json" | "text"
	Verbose    bool

	// OpenLedger connects to the configured ledger. Tests replace it.
	OpenLedger func(cfg *config.Config, log *zap.SugaredLogger) (ports.Ledger, func() error, error)
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the escrowctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{OpenLedger: openFactoryLedger})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrowctl",
		Short: "Operator tool for the streampay escrow",
		Long: `escrowctl derives record addresses, mints signer tokens, funds identities
on a development ledger and manages ledger snapshots.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "configs/config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.ProgramID, "program-id", "", "escrow program id (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.ProgramID != "" {
		cfg.Escrow.ProgramID = o.ProgramID
	}
	return cfg, nil
}

func (o *RootOptions) programID(cfg *config.Config) (domain.Address, error) {
	id, err := domain.ParseAddress(cfg.Escrow.ProgramID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("program id: %w", err)
	}
	return id, nil
}

func (o *RootOptions) logger(cfg *config.Config) *zap.SugaredLogger {
	if !o.Verbose {
		return zap.NewNop().Sugar()
	}
	return logger.New(cfg.Logging.Level, "console").Sugar()
}

func openFactoryLedger(cfg *config.Config, log *zap.SugaredLogger) (ports.Ledger, func() error, error) {
	factory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if !factory.UsingRedis() {
		factory.Close()
		return nil, nil, fmt.Errorf("ledger backend %q is process-local; escrowctl needs the redis backend", cfg.Ledger.Backend)
	}
	return factory.CreateLedger(), factory.Close, nil
}
