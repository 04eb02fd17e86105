package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var testBackendCmd = &cobra.Command{
	Use:   "test-backend",
	Short: "Check connectivity to the configured upstream backend",
	RunE:  runTestBackend,
}

func runTestBackend(_ *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration file at %s", cfgMgr.GetPath())
	}
	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Forward(ctx, http.MethodGet, "/v1/health", http.Header{}, nil)
	if err != nil {
		color.Red("Could not reach %s: %v", cfg.Backend.URL, err)
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		color.Green("Backend at %s is reachable (status %d).", cfg.Backend.URL, resp.StatusCode)
	} else {
		color.Yellow("Backend at %s responded with status %d.", cfg.Backend.URL, resp.StatusCode)
	}

	if nCtx, ok := client.FetchContextTotal(ctx); ok {
		fmt.Printf("  %-15s: %d\n", "Context size", nCtx)
	} else {
		color.Yellow("  Could not determine context size from /props.")
	}
	return nil
}
