package postgres

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

// Migrate applies all pending schema migrations from cfg.MigrationPath.
// An already-current schema is not an error.
func Migrate(cfg config.DatabaseConfig, log logging.Logger) error {
	m, err := migrate.New("file://"+cfg.MigrationPath, DSN(cfg))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to initialize migrator").
			WithDetail(cfg.MigrationPath)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Debug("schema already current")
			return nil
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to read schema version")
	}
	log.Info("schema migrated",
		logging.Int64("version", int64(version)), logging.Bool("dirty", dirty))
	return nil
}
