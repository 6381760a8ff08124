package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/glyphwheel/internal/engine"
	"github.com/lazypower/glyphwheel/internal/logging"
	"github.com/lazypower/glyphwheel/internal/server"
	"github.com/lazypower/glyphwheel/internal/store"
)

// snapshotsKept bounds the snapshot table when the monitor saves on each tick.
const snapshotsKept = 500

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	eng := engine.New(cfg.Engine)
	eng.SetLogger(log)
	eng.SetAutonomous(cfg.Monitor.Autonomous)
	seeded := eng.SeedCore()

	var db *store.DB
	if cfg.Database.Enabled {
		dbPath := cfg.Database.Path
		if dbPath == "" {
			if dbPath, err = store.DefaultDBPath(); err != nil {
				return fmt.Errorf("resolve db path: %w", err)
			}
		}
		if db, err = store.Open(dbPath); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		eng.SetSink(db)
		log.Info("database opened", "path", dbPath)
	}

	if cfg.Monitor.Enabled {
		eng.StartMonitor(cfg.Monitor.Interval, func(t engine.TickReport) {
			if len(t.Lifecycle.Died) > 0 || t.Spawned != "" {
				log.Info("monitor tick", "died", len(t.Lifecycle.Died), "decayed", t.Decayed, "spawned", t.Spawned, "nodes", t.Lifecycle.NodeCount)
			}
			if db == nil || !cfg.Monitor.Snapshots {
				return
			}
			if _, err := db.SaveSnapshot(eng.Status()); err != nil {
				log.Warn("snapshot failed", "error", err)
				return
			}
			if _, err := db.PruneSnapshots(snapshotsKept); err != nil {
				log.Warn("snapshot prune failed", "error", err)
			}
		})
	}
	defer eng.Stop()

	srv := server.New(eng, db, VersionString(), server.Options{
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		Logger:    log,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("glyphwheel serving", "addr", httpServer.Addr, "nodes", seeded, "monitor", cfg.Monitor.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
