// Package postgres reads the change log from a PostgreSQL table through pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is the subset of pgxpool.Pool the store uses
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ChangeLogStore implements the change log ports on top of the change_log table
type ChangeLogStore struct {
	db     Querier
	logger *zap.Logger
}

// NewChangeLogStore wires a store backed by a pgx pool
func NewChangeLogStore(db Querier, logger *zap.Logger) *ChangeLogStore {
	return &ChangeLogStore{db: db, logger: logger}
}

// Connect opens and pings a connection pool
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Watermark returns the highest sequence in the log
func (s *ChangeLogStore) Watermark(ctx context.Context) (int64, error) {
	var watermark int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM change_log`).Scan(&watermark)
	if err != nil {
		return 0, fmt.Errorf("failed to read change log watermark: %w", err)
	}
	return watermark, nil
}

// ListObjects returns the objects with a record at or below upTo
func (s *ChangeLogStore) ListObjects(ctx context.Context, upTo int64) ([]valueobjects.ObjectID, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT DISTINCT object_type, pkey
		 FROM change_log
		 WHERE seq <= $1
		 ORDER BY object_type, pkey`,
		upTo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log objects: %w", err)
	}
	defer rows.Close()

	var ids []valueobjects.ObjectID
	for rows.Next() {
		var objectType, key string
		if err := rows.Scan(&objectType, &key); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		ids = append(ids, valueobjects.ObjectID{Type: valueobjects.ObjectType(objectType), Key: key})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate objects: %w", err)
	}
	return ids, nil
}

// GetChanges returns one object's records at or below upTo
func (s *ChangeLogStore) GetChanges(ctx context.Context, id valueobjects.ObjectID, upTo int64) ([]entities.ChangeRecord, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT seq, object_type, pkey, operation, attributes, timestamp
		 FROM change_log
		 WHERE object_type = $1
		   AND pkey = $2
		   AND seq <= $3
		 ORDER BY timestamp, seq`,
		string(id.Type),
		id.Key,
		upTo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes for %s: %w", id, err)
	}
	defer rows.Close()

	var records []entities.ChangeRecord
	for rows.Next() {
		var (
			record     entities.ChangeRecord
			objectType string
			operation  string
		)
		if err := rows.Scan(&record.Sequence, &objectType, &record.Key, &operation, &record.Attributes, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		record.ObjectType = valueobjects.ObjectType(objectType)
		record.Operation = entities.Operation(operation)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate changes for %s: %w", id, err)
	}
	return records, nil
}

// Append inserts records in one transaction; the database assigns sequence
// numbers. Appends hold a table lock that also waits for plain inserts, so
// sequences become visible in order and a watermark never passes a record
// that commits later.
func (s *ChangeLogStore) Append(ctx context.Context, records ...entities.ChangeRecord) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE change_log IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("failed to lock change log: %w", err)
	}

	for _, record := range records {
		id := record.ObjectID()
		attrs := record.Attributes
		if attrs == nil {
			attrs = []entities.Attribute{}
		}
		_, err := tx.Exec(
			ctx,
			`INSERT INTO change_log (object_type, pkey, operation, attributes, timestamp)
			 VALUES ($1, $2, $3, $4, $5)`,
			string(id.Type),
			id.Key,
			string(record.Operation),
			attrs,
			record.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to append change record for %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}

	s.logger.Debug("Change records appended", zap.Int("count", len(records)))
	return nil
}

var _ ports.ChangeLogStore = (*ChangeLogStore)(nil)
