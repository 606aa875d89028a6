package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dragid10/playlistter/internal/config"
	"github.com/dragid10/playlistter/internal/spotify"
	"github.com/dragid10/playlistter/internal/store"
	"github.com/dragid10/playlistter/internal/twitter"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and credentials",
		Long:  "Runs diagnostic checks on Playlistter prerequisites: config, timezone, schedule, archive database, Twitter credentials, Spotify credentials, and playlist access.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "playlistter.yaml", "path to Playlistter config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Playlistter Doctor")
	fmt.Fprintln(out, "==================")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var results []checkResult

	// 1. Config
	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	if cfg != nil {
		// 2. Timezone and schedule
		results = append(results, checkTimezone(cfg))
		results = append(results, checkSchedule(cfg))

		// 3. Archive database
		results = append(results, checkArchive(cfg))

		// 4. Twitter credentials
		results = append(results, checkTwitter(ctx, cfg))

		// 5. Spotify credentials and playlist
		results = append(results, checkSpotify(ctx, cfg)...)
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

func checkTimezone(cfg *config.Config) checkResult {
	loc, err := cfg.Location()
	if err != nil {
		return checkResult{"Timezone", "FAIL", err.Error()}
	}
	return checkResult{"Timezone", "PASS", fmt.Sprintf("%s (now %s)", cfg.Timezone, time.Now().In(loc).Format("15:04"))}
}

func checkSchedule(cfg *config.Config) checkResult {
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return checkResult{"Schedule", "FAIL", fmt.Sprintf("%q: %v", cfg.Schedule, err)}
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	next := sched.Next(time.Now().In(loc))
	return checkResult{"Schedule", "PASS", fmt.Sprintf("%q, next fire %s", cfg.Schedule, next.Format(time.RFC1123))}
}

func checkArchive(cfg *config.Config) checkResult {
	if _, err := store.Open(cfg.Store.Path); err != nil {
		return checkResult{"Archive", "FAIL", fmt.Sprintf("%s: %v", cfg.Store.Path, err)}
	}
	return checkResult{"Archive", "PASS", cfg.Store.Path}
}

func checkTwitter(ctx context.Context, cfg *config.Config) checkResult {
	tw, err := twitter.New(twitter.ClientOpts{
		BearerToken:  cfg.Twitter.BearerToken,
		ClientID:     cfg.Twitter.ClientID,
		ClientSecret: cfg.Twitter.ClientSecret,
		RefreshToken: cfg.Twitter.RefreshToken,
	})
	if err != nil {
		return checkResult{"Twitter", "FAIL", err.Error()}
	}
	self, err := tw.Self(ctx)
	if err != nil {
		return checkResult{"Twitter", "FAIL", err.Error()}
	}
	return checkResult{"Twitter", "PASS", fmt.Sprintf("authenticated as @%s", self.Handle)}
}

func checkSpotify(ctx context.Context, cfg *config.Config) []checkResult {
	sp, err := spotify.New(spotify.ClientOpts{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	})
	if err != nil {
		return []checkResult{{"Spotify", "FAIL", err.Error()}}
	}

	var results []checkResult
	name, err := sp.Verify(ctx)
	if err != nil {
		return append(results, checkResult{"Spotify", "FAIL", err.Error()},
			checkResult{"Playlist", "FAIL", "skipped (no credentials)"})
	}
	results = append(results, checkResult{"Spotify", "PASS", fmt.Sprintf("authenticated as %s", name)})

	uris, err := sp.PlaylistTracks(ctx, cfg.Spotify.PlaylistID)
	if err != nil {
		return append(results, checkResult{"Playlist", "FAIL", err.Error()})
	}
	return append(results, checkResult{"Playlist", "PASS", fmt.Sprintf("%s readable, %d track(s)", cfg.Spotify.PlaylistID, len(uris))})
}
