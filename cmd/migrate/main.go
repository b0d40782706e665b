package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"leadhook/internal/pkg/logger"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/repositories"
	"leadhook/migrations"
)

func main() {
	var configPath string
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "leadhook-migrate",
		Short:        "Apply the global and tenant database schemas",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Logging)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "global",
		Short: "Migrate the global database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewGlobalDB(cfg.Database.Global)
			if err != nil {
				return fmt.Errorf("connect global db: %w", err)
			}
			defer db.Close()

			if err := database.ApplyMigrations(db, migrations.FS, migrations.GlobalDir); err != nil {
				return err
			}
			log.Info().Msg("global migrations applied")
			return nil
		},
	})

	var orgID string
	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Migrate one organization's database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateTenants(cmd.Context(), cfg, orgID)
		},
	}
	tenantCmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	tenantCmd.MarkFlagRequired("org")
	root.AddCommand(tenantCmd)

	root.AddCommand(&cobra.Command{
		Use:   "tenants",
		Short: "Migrate every organization's database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateTenants(cmd.Context(), cfg, "")
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// migrateTenants migrates orgID, or every live organization when orgID is
// empty. Opening a tenant database through the pool applies its schema.
func migrateTenants(ctx context.Context, cfg *config.Config, orgID string) error {
	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		return fmt.Errorf("connect global db: %w", err)
	}
	defer globalDB.Close()

	orgRepo := repositories.NewOrganizationRepository(globalDB)
	pool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer pool.CloseAll()

	if orgID != "" {
		org, err := orgRepo.GetByID(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return fmt.Errorf("organization %s not found", orgID)
		}
		if _, err := pool.Get(org.ID, org.DBFilePath); err != nil {
			return err
		}
		log.Info().Str("organization_id", org.ID).Msg("tenant migrations applied")
		return nil
	}

	orgs, err := orgRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if _, err := pool.Get(org.ID, org.DBFilePath); err != nil {
			return err
		}
		log.Info().Str("organization_id", org.ID).Msg("tenant migrations applied")
	}
	log.Info().Int("count", len(orgs)).Msg("all tenant migrations applied")
	return nil
}
