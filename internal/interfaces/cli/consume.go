package cli

import (
	"context"
	"os/signal"
	"syscall"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/domain/matching"
	redisdb "github.com/linkrx/formident/internal/infrastructure/database/redis"
	"github.com/linkrx/formident/internal/infrastructure/messaging/kafka"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	metrics "github.com/linkrx/formident/internal/infrastructure/monitoring/prometheus"
)

func newConsumeCommand() *cobra.Command {
	var (
		snapshot string
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Resolve streamed match requests from the record topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			cfg := app.cfg
			if snapshot == "" {
				snapshot = cfg.Resolution.SnapshotPath
			}

			registry, err := loadRegistry(snapshot)
			if err != nil {
				return err
			}
			app.log.Info("snapshot loaded",
				logging.String("path", snapshot), logging.Int("classes", registry.Len()))

			svc := resolution.NewService(registry, nil, nil, nil,
				metrics.NewMetrics(promclient.NewRegistry()), app.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if useCache {
				rdb, err := redisdb.NewClient(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer rdb.Close()
				svc.UseMatchCache(redisdb.NewMatchCache(rdb, cfg.Redis.KeyPrefix,
					cfg.Redis.DefaultTTL, snapshotGeneration(snapshot), app.log))
			}

			consumer := kafka.NewConsumer(cfg.Kafka, app.log)
			defer consumer.Close()

			app.log.Info("consuming match requests",
				logging.String("topic", cfg.Kafka.RecordTopic),
				logging.String("group", cfg.Kafka.GroupID))
			return consumer.Run(ctx, func(ctx context.Context, rec matching.Record) error {
				ids, err := svc.ResolveRecord(ctx, rec)
				if err != nil {
					return err
				}
				app.log.Info("match request resolved",
					logging.String("ingredient", rec.Ingredient),
					logging.String("strength", rec.Strength),
					logging.Int("classes", len(ids)),
					logging.Any("class_ids", ids))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "snapshot file to resolve against")
	cmd.Flags().BoolVar(&useCache, "cache", false, "memoize match decisions in redis")
	return cmd
}
