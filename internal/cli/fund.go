package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"streampay/internal/core/domain"
)

type fundOutput struct {
	Address string `json:"address"`
	Funded  uint64 `json:"funded"`
	Balance uint64 `json:"balance"`
}

// NewFundCommand mints value into an identity on a development ledger.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <amount>",
		Short: "Mint value into an account (development ledgers only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint64(args[1], "amount")
			if err != nil {
				return err
			}
			if amount == 0 {
				return domain.ErrInvalidAmount
			}

			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			ledger, closeLedger, err := rootOpts.OpenLedger(cfg, rootOpts.logger(cfg))
			if err != nil {
				return err
			}
			defer closeLedger()

			ctx := cmd.Context()
			if err := ledger.Fund(ctx, addr, amount); err != nil {
				return err
			}
			acct, err := ledger.Account(ctx, addr)
			if err != nil {
				return err
			}

			out := fundOutput{Address: addr.String(), Funded: amount, Balance: acct.Balance}
			return rootOpts.printer(cmd.OutOrStdout()).result(out, [][2]string{
				{"address", out.Address},
				{"funded", strconv.FormatUint(out.Funded, 10)},
				{"balance", strconv.FormatUint(out.Balance, 10)},
			})
		},
	}
}
