// Package status serves a small JSON status endpoint for the running bot.
package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dragid10/playlistter/internal/bot"
)

// Snapshotter reports the bot's current cycle state.
type Snapshotter interface {
	Snapshot() bot.Snapshot
}

// StartOpts holds configuration for the status server.
type StartOpts struct {
	Bot     Snapshotter
	NextRun func() time.Time // next scheduled cycle, zero when unscheduled
	Port    int
	Out     io.Writer
}

// Start launches the status HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Bot == nil {
		return fmt.Errorf("status: bot is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts.Bot, opts.NextRun)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Status endpoint at http://localhost:%d/status\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

func registerRoutes(router *gin.Engine, b Snapshotter, nextRun func() time.Time) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.GET("/status", func(c *gin.Context) {
		snap := b.Snapshot()
		resp := gin.H{
			"prompt_id":   snap.PromptID,
			"prompt_date": snap.PromptDate,
			"submissions": snap.Submissions,
			"watching":    snap.Watching,
		}
		if nextRun != nil {
			if next := nextRun(); !next.IsZero() {
				resp["next_cycle"] = next.Format(time.RFC3339)
			}
		}
		c.JSON(http.StatusOK, resp)
	})
}
