package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/db"
)

var tokenEmail string

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email of the account to mint a token for")
	tokenCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an existing account",
	Long: `Mint a JWT for an existing account, signed with the configured
jwt_secret. Intended for development and scripted API access; the token
carries the account's role and team and expires after the configured TTL.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not configured")
	}

	return withDatabase(func(database *db.DB) error {
		user, err := db.NewUserRepo(database).GetByEmail(context.Background(), tokenEmail)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("no account with email %s", tokenEmail)
		}

		tokens := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)
		signed, err := tokens.Sign(user)
		if err != nil {
			return err
		}

		fmt.Println(signed)
		return nil
	})
}
