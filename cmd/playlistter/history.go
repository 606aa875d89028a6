package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dragid10/playlistter/internal/config"
	"github.com/dragid10/playlistter/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		day        string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived submissions",
		Long:  "Lists accepted submissions from the local archive, newest first, or all submissions for one day with --day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, configPath, day, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "playlistter.yaml", "path to Playlistter config file")
	cmd.Flags().StringVar(&day, "day", "", "show one day only (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max submissions to show")
	return cmd
}

func runHistory(cmd *cobra.Command, configPath, day string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}

	var subs []store.Submission
	if day != "" {
		subs, err = st.ByDay(day)
	} else {
		subs, err = st.Recent(limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(subs) == 0 {
		fmt.Fprintln(out, "No submissions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tUSER\tTRACK\tARTIST\tURI")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t@%s\t%s\t%s\t%s\n", s.Day, s.AuthorHandle, s.TrackTitle, s.TrackArtist, s.TrackURI)
	}
	return w.Flush()
}
