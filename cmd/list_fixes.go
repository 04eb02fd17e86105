package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/llamabridge/llamabridge/internal/fixes"
)

var listFixesCmd = &cobra.Command{
	Use:   "list-fixes",
	Short: "List the registered response fixes and whether they're enabled",
	RunE:  runListFixes,
}

func runListFixes(_ *cobra.Command, _ []string) error {
	registry := fixes.NewDefaultRegistry()

	if cfgMgr.Exists() {
		if cfg, err := cfgMgr.Load(); err == nil {
			for name, mod := range cfg.Fixes.Modules {
				registry.SetEnabled(name, mod.Enabled)
			}
		}
	}

	color.Blue("Registered fixes:")
	for _, f := range registry.List() {
		status := color.GreenString("enabled")
		if !registry.IsEnabled(f.Name()) {
			status = color.RedString("disabled")
		}
		fmt.Printf("  %-32s [%s]\n    %s\n", f.Name(), status, f.Description())
	}
	return nil
}
