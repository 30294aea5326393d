package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/platewise/extraction-engine/internal/config"
	"github.com/platewise/extraction-engine/internal/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Draft-access token utilities",
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a draft-access token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		issuer, err := token.NewIssuer(cfg.Tokens.Secret, cfg.TokenTTL())
		if err != nil {
			return err
		}

		verified, err := issuer.Verify(args[0])
		if err != nil {
			color.Red("Invalid token: %v", err)
			return fmt.Errorf("token verification failed")
		}

		color.Green("Token valid")
		fmt.Printf("  draft_id:   %s\n", verified.DraftID)
		fmt.Printf("  owner_id:   %s\n", verified.OwnerID)
		fmt.Printf("  expires_at: %s\n", verified.ExpiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenVerifyCmd)
}
