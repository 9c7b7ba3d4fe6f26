package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/twinplan/app"
	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/pkg/export"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the twin worlds, cost models, algorithms and energy flows of the catalog",
	RunE:  runOptions,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cat, err := app.OpenCatalog(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()
	opts, err := cat.Options(cmd.Context())
	if err != nil {
		return err
	}
	return export.WriteJSON(cmd.OutOrStdout(), opts)
}
