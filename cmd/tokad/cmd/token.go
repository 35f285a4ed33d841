package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toka-os/toka-core/internal/auth"
	"github.com/toka-os/toka-core/internal/types"
)

var (
	tokenSubject     string
	tokenVault       string
	tokenPermissions []string
	tokenTTL         time.Duration
)

// tokenCmd mints a capability token against the same shared secret the
// serve subcommand validates against. An operator tool like this is
// exactly the intended caller of auth.Issuer (see its doc comment);
// nothing inside internal/ ever issues tokens itself.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a capability token for development and testing",
	RunE:  runToken,
}

func init() {
	flags := tokenCmd.Flags()
	flags.StringVar(&tokenSubject, "subject", "", "entity id the token authenticates (required; use the all-zero id for root)")
	flags.StringVar(&tokenVault, "vault", "default", "vault name carried in the token's claims")
	flags.StringSliceVar(&tokenPermissions, "permission", nil, "permission string to grant; repeatable")
	flags.DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	secret := viper.GetString("auth-secret")
	if secret == "" {
		return fmt.Errorf("auth-secret is required (flag --auth-secret or env TOKAD_AUTH_SECRET)")
	}

	subject, err := types.ParseEntityID(tokenSubject)
	if err != nil {
		return fmt.Errorf("parse subject: %w", err)
	}

	issuer, err := auth.NewHS256Validator([]byte(secret), nil)
	if err != nil {
		return fmt.Errorf("build issuer: %w", err)
	}

	now := time.Now()
	token, err := issuer.Issue(auth.Claims{
		Sub:         subject.String(),
		Vault:       tokenVault,
		Permissions: tokenPermissions,
		IAT:         now.Unix(),
		EXP:         now.Add(tokenTTL).Unix(),
		JTI:         fmt.Sprintf("%s-%d", subject.String(), now.UnixNano()),
	})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
