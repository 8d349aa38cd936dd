package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihwankim/cachebench/internal/config"
	"github.com/jihwankim/cachebench/internal/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run a load generation session",
	Long:  `Loads a config YAML file and drives traffic against the configured target until a signal is received.`,
	RunE:  runLoadSession,
}

func init() {
	runCmd.Flags().StringArray("set", []string{}, "override config values (e.g., --set general.threads=8)")
	runCmd.Flags().Bool("dry-run", false, "load, override, and validate config without starting a run")
}

func runLoadSession(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("--config flag is required")
	}
	setFlags, _ := cmd.Flags().GetStringArray("set")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(setFlags) > 0 {
		if err := cfg.ApplyOverrides(setFlags); err != nil {
			return fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	if verbose {
		cfg.Debug.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		dumpPath := cfgFile + ".resolved.yaml"
		if err := cfg.Save(dumpPath); err != nil {
			return fmt.Errorf("failed to write resolved config: %w", err)
		}
		fmt.Printf("config is valid; resolved configuration written to %s\n", dumpPath)
		return nil
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runtime.WatchSignals(cancel, rt)

	rt.Logger.Info("cachebench starting", "protocol", string(cfg.General.Protocol), "endpoints", len(cfg.Target.Endpoints))

	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run failed: %w", err)
	}

	rt.Logger.Info("cachebench shutdown complete")
	return nil
}
