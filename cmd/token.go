package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/auth"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
)

var (
	tokenUserID   uint
	tokenTenantID uint
	tokenRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := auth.NewTokenIssuer(cfg.Auth)
		if err != nil {
			return err
		}

		token, err := issuer.Issue(domain.ActorContext{
			UserID:   tokenUserID,
			TenantID: tokenTenantID,
			Role:     domain.ParseRole(tokenRole),
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUserID, "user", 1, "user id")
	tokenCmd.Flags().UintVar(&tokenTenantID, "tenant", 1, "tenant id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleEmployee), "role (admin or employee)")
	rootCmd.AddCommand(tokenCmd)
}
