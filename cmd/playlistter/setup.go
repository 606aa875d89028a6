package main

import (
	"fmt"
	"io"

	"github.com/dragid10/playlistter/internal/bot"
	"github.com/dragid10/playlistter/internal/config"
	"github.com/dragid10/playlistter/internal/spotify"
	"github.com/dragid10/playlistter/internal/store"
	"github.com/dragid10/playlistter/internal/twitter"
)

// app bundles the wired-up collaborators shared by the start and cycle
// commands.
type app struct {
	cfg     *config.Config
	store   *store.Store
	twitter *twitter.Client
	spotify *spotify.Client
	bot     *bot.Controller
}

// buildApp loads the config and wires the Twitter client, Spotify client,
// submission archive, and controller together.
func buildApp(configPath string, out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	tw, err := twitter.New(twitter.ClientOpts{
		BearerToken:  cfg.Twitter.BearerToken,
		ClientID:     cfg.Twitter.ClientID,
		ClientSecret: cfg.Twitter.ClientSecret,
		RefreshToken: cfg.Twitter.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	sp, err := spotify.New(spotify.ClientOpts{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := bot.NewController(bot.ControllerOpts{
		Social:         tw,
		Catalog:        sp,
		Archiver:       st,
		PlaylistID:     cfg.Spotify.PlaylistID,
		PlaylistURL:    cfg.PlaylistURL,
		CatalogLimit:   cfg.CatalogLimit,
		SearchPageSize: cfg.SearchPageSize,
		Location:       loc,
		Out:            out,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: st, twitter: tw, spotify: sp, bot: ctrl}, nil
}
