package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/application/resolution"
	redisdb "github.com/linkrx/formident/internal/infrastructure/database/redis"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	metrics "github.com/linkrx/formident/internal/infrastructure/monitoring/prometheus"
	httpiface "github.com/linkrx/formident/internal/interfaces/http"
	"github.com/linkrx/formident/pkg/errors"
)

func newServeCommand() *cobra.Command {
	var (
		snapshot string
		port     int
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API over a loaded snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			cfg := app.cfg
			if snapshot == "" {
				snapshot = cfg.Resolution.SnapshotPath
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			registry, err := loadRegistry(snapshot)
			if err != nil {
				return err
			}
			app.log.Info("snapshot loaded",
				logging.String("path", snapshot), logging.Int("classes", registry.Len()))

			promRegistry := promclient.NewRegistry()
			svc := resolution.NewService(registry, nil, nil, nil,
				metrics.NewMetrics(promRegistry), app.log)

			if useCache {
				rdb, err := redisdb.NewClient(cmd.Context(), cfg.Redis)
				if err != nil {
					return err
				}
				defer rdb.Close()
				svc.UseMatchCache(redisdb.NewMatchCache(rdb, cfg.Redis.KeyPrefix,
					cfg.Redis.DefaultTTL, snapshotGeneration(snapshot), app.log))
				app.log.Info("match cache enabled", logging.String("addr", cfg.Redis.Addr))
			}

			router := httpiface.NewRouter(cfg.Server, svc, promRegistry, app.log)

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				app.log.Info("query api listening", logging.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- errors.Wrap(err, errors.CodeInternal, "query api server failed")
					return
				}
				errCh <- nil
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "graceful shutdown failed")
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "snapshot file to serve")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&useCache, "cache", false, "memoize match decisions in redis")
	return cmd
}

// snapshotGeneration derives a cache generation from the served snapshot
// file so a reloaded snapshot never reads another generation's decisions.
func snapshotGeneration(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return filepath.Base(path)
	}
	return fmt.Sprintf("%s-%d-%d", filepath.Base(path), fi.Size(), fi.ModTime().Unix())
}
