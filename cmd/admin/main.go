package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"leadhook/internal/pkg/logger"
	"leadhook/internal/platform/auth"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/repositories"
	"leadhook/migrations"
)

func main() {
	var configPath string
	var p *provisioner

	root := &cobra.Command{
		Use:          "leadhook-admin",
		Short:        "Provision organizations, users and access tokens",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Logging)

			globalDB, err := database.NewGlobalDB(cfg.Database.Global)
			if err != nil {
				return fmt.Errorf("connect global db: %w", err)
			}
			if err := database.ApplyMigrations(globalDB, migrations.FS, migrations.GlobalDir); err != nil {
				return err
			}
			p = &provisioner{
				orgs:   repositories.NewOrganizationRepository(globalDB),
				users:  repositories.NewUserRepository(globalDB),
				pool:   database.NewTenantDBPool(cfg.Database.Tenant),
				tokens: auth.NewTokenService(cfg.JWT),
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if p != nil {
				p.pool.CloseAll()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")

	orgCmd := &cobra.Command{Use: "org", Short: "Manage organizations"}
	var org orgInput
	orgCreate := &cobra.Command{
		Use:   "create",
		Short: "Create an organization and its tenant database",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := p.createOrg(cmd.Context(), org)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	orgCreate.Flags().StringVar(&org.Slug, "slug", "", "URL-safe organization slug")
	orgCreate.Flags().StringVar(&org.Name, "name", "", "Display name")
	orgCreate.Flags().StringVar(&org.PlanTier, "plan", "free", "Plan tier")
	orgCmd.AddCommand(orgCreate)

	userCmd := &cobra.Command{Use: "user", Short: "Manage users"}
	var user userInput
	userCreate := &cobra.Command{
		Use:   "create",
		Short: "Add a user to an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := p.createUser(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	userCreate.Flags().StringVar(&user.OrgID, "org", "", "Organization ID")
	userCreate.Flags().StringVar(&user.Email, "email", "", "Email address")
	userCreate.Flags().StringVar(&user.FullName, "name", "", "Full name")
	userCreate.Flags().StringVar(&user.Role, "role", "member", "owner, admin or member")
	userCmd.AddCommand(userCreate)

	var userID string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := p.mintToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&userID, "user", "", "User ID")
	tokenCmd.MarkFlagRequired("user")

	root.AddCommand(orgCmd, userCmd, tokenCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
