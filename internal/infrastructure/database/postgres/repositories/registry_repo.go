// Package repositories implements persistence of registry snapshots.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

// RegistryRepository stores the externalized class records of a frozen
// registry in the equivalence_classes table.  The table always holds
// exactly one snapshot generation; Save replaces it wholesale inside a
// transaction so readers never observe a half-written partition.
type RegistryRepository struct {
	db  *sql.DB
	log logging.Logger
}

// NewRegistryRepository returns a repository over db.
func NewRegistryRepository(db *sql.DB, log logging.Logger) *RegistryRepository {
	return &RegistryRepository{db: db, log: log.Named("registry_repo")}
}

// Save replaces the stored snapshot with records.
func (r *RegistryRepository) Save(ctx context.Context, records []equivalence.ClassRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to begin snapshot transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM equivalence_classes`); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to clear previous snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equivalence_classes (id, formulation_keys, application_keys)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to prepare snapshot insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		formKeys, err := json.Marshal(rec.FormulationKeys)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode formulation keys")
		}
		appKeys, err := json.Marshal(rec.ApplicationKeys)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode application keys")
		}
		if _, err := stmt.ExecContext(ctx, int(rec.ID), formKeys, appKeys); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert class record")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to commit snapshot")
	}
	r.log.Info("snapshot saved", logging.Int("classes", len(records)))
	return nil
}

// Load reads the stored snapshot in id order.  An empty table yields an
// empty slice, not an error.
func (r *RegistryRepository) Load(ctx context.Context) ([]equivalence.ClassRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, formulation_keys, application_keys
		FROM equivalence_classes
		ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query snapshot")
	}
	defer rows.Close()

	var records []equivalence.ClassRecord
	for rows.Next() {
		var (
			id       int
			formKeys []byte
			appKeys  []byte
		)
		if err := rows.Scan(&id, &formKeys, &appKeys); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan class record")
		}
		rec := equivalence.ClassRecord{ID: equivalence.ClassID(id)}
		if err := json.Unmarshal(formKeys, &rec.FormulationKeys); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSnapshotCorrupt, "failed to decode formulation keys")
		}
		if err := json.Unmarshal(appKeys, &rec.ApplicationKeys); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSnapshotCorrupt, "failed to decode application keys")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate snapshot rows")
	}
	return records, nil
}

// Restore loads the stored snapshot and rebuilds a frozen registry from it.
func (r *RegistryRepository) Restore(ctx context.Context) (*equivalence.Registry, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return equivalence.Restore(records)
}
