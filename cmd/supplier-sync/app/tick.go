package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/supplier-sync/internal/app"
)

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run a single sync tick and print its result",
		Long: `Run one sync tick against the configured catalog and supplier, then exit.
The tick advances the persisted cursor exactly like a scheduled tick.`,
		RunE: runTick,
	}
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	return cmd
}

func runTick(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	syncApp, err := app.NewSupplierSyncApp(ctx, app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer syncApp.Close()

	result, err := syncApp.Tick(ctx)
	if err != nil {
		return fmt.Errorf("tick failed: %w", err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format tick result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return err
}
