package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dragid10/playlistter/internal/scheduler"
	"github.com/dragid10/playlistter/internal/status"
)

const cycleJobName = "daily-cycle"

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the Playlistter daemon",
		Long:  "Runs the daily cycle immediately, then keeps running it on the configured schedule. Blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "playlistter.yaml", "path to Playlistter config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	a, err := buildApp(configPath, out)
	if err != nil {
		return err
	}
	defer a.bot.Close()

	sched, err := scheduler.New(a.cfg.Timezone)
	if err != nil {
		return err
	}

	cycle := func(ctx context.Context) error {
		return a.bot.RunDailyCycle(ctx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catch up immediately; a restart must not wait until tomorrow's fire
	// time to recover the ledger.
	if err := sched.RunNow(cycleJobName, cycle); err != nil {
		return fmt.Errorf("initial cycle: %w", err)
	}

	if err := sched.AddJob(cycleJobName, a.cfg.Schedule, cycle); err != nil {
		return err
	}
	sched.Start()

	if a.cfg.StatusPort > 0 {
		go func() {
			opts := status.StartOpts{
				Bot:  a.bot,
				Port: a.cfg.StatusPort,
				Out:  out,
				NextRun: func() time.Time {
					next, ok := sched.NextRun(cycleJobName)
					if !ok {
						return time.Time{}
					}
					return next
				},
			}
			if err := status.Start(ctx, opts); err != nil {
				log.Printf("status server: %v", err)
			}
		}()
	}

	if next, ok := sched.NextRun(cycleJobName); ok {
		fmt.Fprintf(out, "Playlistter running (next cycle: %s)\n", next.Format(time.RFC1123))
	}

	<-ctx.Done()
	fmt.Fprintln(out, "Shutting down")
	<-sched.Stop().Done()
	return nil
}
