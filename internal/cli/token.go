package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"streampay/internal/core/domain"
	"streampay/internal/core/services"
)

type tokenOutput struct {
	Signer       string `json:"signer"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// NewTokenCommand mints access and refresh tokens for a signer using the
// configured auth secret.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <signer-address>",
		Short: "Mint bearer tokens for a signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			if cfg.UsesDefaultJWTSecret() {
				return fmt.Errorf("auth.jwt_secret is the built-in placeholder; set it in the config or STREAMPAY_JWT_SECRET")
			}

			auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
			access, err := auth.GenerateToken(signer)
			if err != nil {
				return err
			}
			refresh, err := auth.GenerateRefreshToken(signer)
			if err != nil {
				return err
			}

			out := tokenOutput{
				Signer:       signer.String(),
				AccessToken:  access,
				RefreshToken: refresh,
				ExpiresIn:    int(cfg.Auth.AccessTokenTTL.Seconds()),
			}
			return rootOpts.printer(cmd.OutOrStdout()).result(out, [][2]string{
				{"signer", out.Signer},
				{"access_token", out.AccessToken},
				{"refresh_token", out.RefreshToken},
			})
		},
	}
}
