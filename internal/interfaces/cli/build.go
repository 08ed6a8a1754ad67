package cli

import (
	"fmt"
	"os"
	"path/filepath"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/infrastructure/database/postgres"
	"github.com/linkrx/formident/internal/infrastructure/database/postgres/repositories"
	"github.com/linkrx/formident/internal/infrastructure/dataset"
	"github.com/linkrx/formident/internal/infrastructure/messaging/kafka"
	metrics "github.com/linkrx/formident/internal/infrastructure/monitoring/prometheus"
	"github.com/linkrx/formident/internal/infrastructure/storage/minio"
	"github.com/linkrx/formident/pkg/errors"
)

func newBuildCommand() *cobra.Command {
	var (
		obDir       string
		ndcDir      string
		snapshotOut string
		withKafka   bool
		toPostgres  bool
		toMinio     bool
		link        bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest the corpus and write the equivalence snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			cfg := app.cfg
			if obDir == "" {
				obDir = cfg.Resolution.OrangeBookDir
			}
			if ndcDir == "" {
				ndcDir = cfg.Resolution.NDCDir
			}
			if snapshotOut == "" {
				snapshotOut = cfg.Resolution.SnapshotPath
			}
			ctx := cmd.Context()

			var publisher resolution.EventPublisher
			if withKafka {
				producer := kafka.NewProducer(cfg.Kafka, app.log)
				defer producer.Close()
				publisher = producer
			}

			svc := resolution.NewService(
				equivalence.NewRegistry(),
				dataset.NewOrangeBookSource(obDir, app.log),
				dataset.NewNDCSource(ndcDir, app.log),
				publisher,
				metrics.NewMetrics(promclient.NewRegistry()),
				app.log,
			)

			report, err := svc.Build(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: %d records, %d classes, %d merges in %s\n",
				report.RunID, report.Records, report.Classes, report.Merges, report.Duration)

			if err := writeSnapshotFile(svc, snapshotOut); err != nil {
				return err
			}
			fmt.Printf("snapshot written to %s\n", snapshotOut)

			if toPostgres {
				if err := postgres.Migrate(cfg.Database, app.log); err != nil {
					return err
				}
				db, err := postgres.Connect(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				repo := repositories.NewRegistryRepository(db, app.log)
				if err := repo.Save(ctx, svc.Registry().Snapshot()); err != nil {
					return err
				}
				fmt.Println("snapshot saved to postgres")
			}

			if toMinio {
				store, err := minio.NewSnapshotStore(ctx, cfg.MinIO, app.log)
				if err != nil {
					return err
				}
				if err := store.Upload(ctx, filepath.Base(snapshotOut), svc.Registry()); err != nil {
					return err
				}
				fmt.Println("snapshot uploaded to object storage")
			}

			if link {
				linkReport, err := svc.LinkNDC(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("link run %s: %d linked, %d unlinked, %d classes unmatched\n",
					linkReport.RunID, linkReport.Linked, linkReport.Unlinked,
					len(linkReport.UnmatchedClasses))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&obDir, "ob-dir", "", "orange book releases directory")
	cmd.Flags().StringVar(&ndcDir, "ndc-dir", "", "ndc releases directory")
	cmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "snapshot output path")
	cmd.Flags().BoolVar(&withKafka, "kafka", false, "publish run events to kafka")
	cmd.Flags().BoolVar(&toPostgres, "to-postgres", false, "also save the snapshot to postgres")
	cmd.Flags().BoolVar(&toMinio, "to-minio", false, "also upload the snapshot to object storage")
	cmd.Flags().BoolVar(&link, "link", false, "link ndc records to classes after building")
	return cmd
}

func writeSnapshotFile(svc *resolution.Service, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "failed to create snapshot directory").
				WithDetail(dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to create snapshot file").
			WithDetail(path)
	}
	if err := svc.WriteSnapshot(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to close snapshot file").
			WithDetail(path)
	}
	return nil
}
