package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"streampay/internal/core/domain"
)

type addressesOutput struct {
	Key      string `json:"key,omitempty"`
	Stream   string `json:"stream,omitempty"`
	Holder   string `json:"holder,omitempty"`
	Group    string `json:"group,omitempty"`
	Treasury string `json:"treasury"`
}

// NewDeriveCommand creates the derive command. Derivation is offline: it
// needs only the program id.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive record addresses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "id <group-id> <stream-id> <level>",
		Short: "Addresses of a stream keyed by group and stream id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseUint64(args[0], "group-id")
			if err != nil {
				return err
			}
			streamID, err := parseUint64(args[1], "stream-id")
			if err != nil {
				return err
			}
			level, err := parseLevel(args[2])
			if err != nil {
				return err
			}
			return runDeriveStream(rootOpts, cmd, domain.ByID{GroupID: groupID, StreamID: streamID, Level: level})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "name <name> <level>",
		Short: "Addresses of a named stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[1])
			if err != nil {
				return err
			}
			return runDeriveStream(rootOpts, cmd, domain.ByName{Name: args[0], Level: level})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "group <group-id>",
		Short: "Address of a payment group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseUint64(args[0], "group-id")
			if err != nil {
				return err
			}
			deriver, err := rootOpts.deriver()
			if err != nil {
				return err
			}
			group, err := deriver.Group(groupID)
			if err != nil {
				return err
			}
			treasury, err := deriver.Treasury()
			if err != nil {
				return err
			}
			out := addressesOutput{Group: group.String(), Treasury: treasury.String()}
			return rootOpts.printer(cmd.OutOrStdout()).result(out, [][2]string{
				{"group", out.Group},
				{"treasury", out.Treasury},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "treasury",
		Short: "Address of the program treasury",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deriver, err := rootOpts.deriver()
			if err != nil {
				return err
			}
			treasury, err := deriver.Treasury()
			if err != nil {
				return err
			}
			out := addressesOutput{Treasury: treasury.String()}
			return rootOpts.printer(cmd.OutOrStdout()).result(out, [][2]string{
				{"treasury", out.Treasury},
			})
		},
	})

	return cmd
}

func (o *RootOptions) deriver() (domain.Deriver, error) {
	cfg, err := o.config()
	if err != nil {
		return domain.Deriver{}, err
	}
	programID, err := o.programID(cfg)
	if err != nil {
		return domain.Deriver{}, err
	}
	return domain.NewDeriver(programID), nil
}

func runDeriveStream(opts *RootOptions, cmd *cobra.Command, key domain.StreamKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	deriver, err := opts.deriver()
	if err != nil {
		return err
	}
	addrs, err := deriver.StreamAddresses(key)
	if err != nil {
		return err
	}

	out := addressesOutput{
		Key:      key.String(),
		Stream:   addrs.Stream.String(),
		Holder:   addrs.Holder.String(),
		Treasury: addrs.Treasury.String(),
	}
	text := [][2]string{
		{"key", out.Key},
		{"stream", out.Stream},
		{"holder", out.Holder},
	}
	if addrs.Group != nil {
		out.Group = addrs.Group.String()
		text = append(text, [2]string{"group", out.Group})
	}
	text = append(text, [2]string{"treasury", out.Treasury})
	return opts.printer(cmd.OutOrStdout()).result(out, text)
}

func parseUint64(s, name string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer: %q", name, s)
	}
	return v, nil
}

func parseLevel(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("level must be an integer in 1..255: %q", s)
	}
	if v < 1 {
		return 0, domain.ErrInvalidLevel
	}
	return uint8(v), nil
}
