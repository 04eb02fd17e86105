package cmd

import (
	"fmt"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file",
	RunE:  runCheckConfig,
}

func runCheckConfig(_ *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration file at %s", cfgMgr.GetPath())
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("parse %s: %w", cfgMgr.GetPath(), err)
	}

	var problems []string

	if cfg.Backend.URL == "" {
		problems = append(problems, "backend.url is required")
	} else if u, err := url.Parse(cfg.Backend.URL); err != nil || u.Host == "" {
		problems = append(problems, "backend.url is not a valid URL")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch cfg.Stats.Format {
	case "pretty", "json", "compact":
	default:
		problems = append(problems, fmt.Sprintf("stats.format %q is not one of pretty, json, compact", cfg.Stats.Format))
	}
	if cfg.Exporters.Redis.Enabled && cfg.Exporters.Redis.Addr == "" {
		problems = append(problems, "exporters.redis.addr is required when exporters.redis.enabled is true")
	}

	if len(problems) > 0 {
		color.Red("Configuration has %d problem(s):", len(problems))
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration invalid")
	}

	color.Green("Configuration at %s is valid.", cfgMgr.GetPath())
	fmt.Printf("  %-15s: %s:%d\n", "Server", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  %-15s: %s\n", "Backend", cfg.Backend.URL)
	fmt.Printf("  %-15s: %s\n", "Stats format", cfg.Stats.Format)
	fmt.Printf("  %-15s: %t\n", "Fixes enabled", cfg.Fixes.Enabled)
	return nil
}
