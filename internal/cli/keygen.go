package cli

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"streampay/internal/core/domain"
)

type keygenOutput struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// NewKeygenCommand creates a fresh ed25519 identity. Its public key is the
// ledger address; the private key is printed once and never stored.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signer identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			var addr domain.Address
			copy(addr[:], pub)

			out := keygenOutput{
				Address:    addr.String(),
				PrivateKey: base58.Encode(priv),
			}
			return rootOpts.printer(cmd.OutOrStdout()).result(out, [][2]string{
				{"address", out.Address},
				{"private_key", out.PrivateKey},
			})
		},
	}
}
