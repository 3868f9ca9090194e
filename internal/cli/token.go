package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
)

// NewDevTokenCommand creates the dev-token command.
func NewDevTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secret  string
		issuer  string
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint an HS256 token for a local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.Issue(auth.Config{Secret: secret, Issuer: issuer}, subject,
				[]string{auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "dev-secret-change-me", "HMAC secret shared with the API (JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "gymbrain.identity", "token issuer (JWT_ISSUER)")
	cmd.Flags().StringVar(&subject, "subject", "", "owner id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
