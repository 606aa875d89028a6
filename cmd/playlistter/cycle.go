package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCycleCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one daily cycle and exit",
		Long:  "Performs a single daily-cycle pass (prompt, ledger recovery, watcher arm) without the scheduler, then tears the watcher down and exits. Useful for cron-managed deployments and debugging.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(cmd, configPath, timeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "playlistter.yaml", "path to Playlistter config file")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "cycle timeout")
	return cmd
}

func runCycle(cmd *cobra.Command, configPath string, timeout time.Duration) error {
	out := cmd.OutOrStdout()

	a, err := buildApp(configPath, out)
	if err != nil {
		return err
	}
	defer a.bot.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := a.bot.RunDailyCycle(ctx); err != nil {
		return err
	}

	snap := a.bot.Snapshot()
	fmt.Fprintf(out, "Cycle complete: prompt %s (%s), %d submission(s) on ledger\n",
		snap.PromptID, snap.PromptDate, snap.Submissions)
	return nil
}
