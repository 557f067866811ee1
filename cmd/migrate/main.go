package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mealscan/backend/config"
	"github.com/mealscan/backend/internal/infrastructure/storage"
	"github.com/mealscan/backend/internal/usecase"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mealscan-migrate",
		Short:        "Maintenance tasks for stored meals",
		SilenceUsage: true,
	}
	root.AddCommand(newNormalizeCmd())
	return root
}

func newNormalizeCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Consolidate legacy nutrient arrays in every stored meal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			meals, err := storage.Open(cfg.Store, false)
			if err != nil {
				return fmt.Errorf("failed to open meal store: %w", err)
			}
			defer meals.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := usecase.NewMigrationService(meals).NormalizeStoredMeals(ctx, dryRun)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stderr)
}
