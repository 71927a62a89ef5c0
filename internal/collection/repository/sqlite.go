package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/db"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const (
	adapterSQLite = "sqlite"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

// SQLiteRepository stores documents in a single SQLite file. Timestamps are
// kept as unix milliseconds.
type SQLiteRepository struct {
	sqlDB *sql.DB
	log   *logger.Logger
}

// OpenSQLite opens path and applies the bundled migrations.
func OpenSQLite(ctx context.Context, path string, log *logger.Logger) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != MemoryPath {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	repo := &SQLiteRepository{sqlDB: sqlDB, log: log}

	applied, err := db.ApplySQLiteMigrations(ctx, sqlDB, migrations(adapterSQLite))
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	metrics.DBMigrationsApplied.WithLabelValues(adapterSQLite).Add(float64(applied))
	if applied > 0 && log != nil {
		log.Infof("sqlite: applied %d migrations to %s", applied, path)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}

func (r *SQLiteRepository) Adapter() string { return adapterSQLite }

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.sqlDB.PingContext(ctx)
}

func (r *SQLiteRepository) Insert(ctx context.Context, doc domain.Document) error {
	start := time.Now()
	data, err := encodeData(doc.Data)
	if err != nil {
		return err
	}

	_, err = r.sqlDB.ExecContext(
		ctx,
		`INSERT INTO documents (id, collection, unique_key, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.Collection,
		nullableKey(doc.UniqueKey),
		data,
		toMillis(doc.CreatedAt),
		toMillis(doc.UpdatedAt),
	)
	if isConstraintError(err) {
		db.MeasureQueryDuration(adapterSQLite, "insert document", start)
		return ErrDuplicateKey
	}
	return db.HandleExecError(adapterSQLite, err, "insert document", start)
}

func (r *SQLiteRepository) Find(ctx context.Context, collection string, q domain.Query) ([]domain.Document, error) {
	if err := validateWhere(q.Where); err != nil {
		return nil, err
	}

	start := time.Now()
	clause, args := sqliteWhere(collection, q.Where)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.sqlDB.QueryContext(
		ctx,
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents
		 WHERE `+clause+`
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, db.HandleQueryError(adapterSQLite, err, nil, "find documents", start)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanSQLite(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := db.HandleQueryError(adapterSQLite, rows.Err(), nil, "find documents", start); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, collection string, where map[string]string) (int, error) {
	if err := validateWhere(where); err != nil {
		return 0, err
	}

	start := time.Now()
	clause, args := sqliteWhere(collection, where)
	var total int
	err := r.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+clause, args...).Scan(&total)
	return total, db.HandleQueryError(adapterSQLite, err, nil, "count documents", start)
}

func (r *SQLiteRepository) FindByID(ctx context.Context, collection, id string) (domain.Document, error) {
	return r.findOne(ctx, "find document by id",
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
}

func (r *SQLiteRepository) FindByUniqueKey(ctx context.Context, collection, key string) (domain.Document, error) {
	return r.findOne(ctx, "find document by unique key",
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents WHERE collection = ? AND unique_key = ?`,
		collection, key,
	)
}

func (r *SQLiteRepository) findOne(ctx context.Context, operation, query string, args ...any) (domain.Document, error) {
	start := time.Now()
	doc, err := scanSQLite(r.sqlDB.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return domain.Document{}, db.HandleQueryError(adapterSQLite, err, ErrDocumentNotFound, operation, start)
	}
	db.MeasureQueryDuration(adapterSQLite, operation, start)
	return doc, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, doc domain.Document) error {
	start := time.Now()
	data, err := encodeData(doc.Data)
	if err != nil {
		return err
	}

	res, err := r.sqlDB.ExecContext(
		ctx,
		`UPDATE documents SET unique_key = ?, data = ?, updated_at = ?
		 WHERE collection = ? AND id = ?`,
		nullableKey(doc.UniqueKey),
		data,
		toMillis(doc.UpdatedAt),
		doc.Collection,
		doc.ID,
	)
	if isConstraintError(err) {
		db.MeasureQueryDuration(adapterSQLite, "update document", start)
		return ErrDuplicateKey
	}
	if err := db.HandleExecError(adapterSQLite, err, "update document", start); err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	res, err := r.sqlDB.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err := db.HandleExecError(adapterSQLite, err, "delete document", start); err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func sqliteWhere(collection string, where map[string]string) (string, []any) {
	parts := []string{"collection = ?"}
	args := []any{collection}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Booleans compare as true/false, matching Postgres ->> output.
	for _, k := range keys {
		parts = append(parts, `CASE json_type(data, '$.' || ?)
			WHEN 'true' THEN 'true'
			WHEN 'false' THEN 'false'
			ELSE CAST(json_extract(data, '$.' || ?) AS TEXT)
		END = ?`)
		args = append(args, k, k, where[k])
	}
	return strings.Join(parts, " AND "), args
}

func scanSQLite(scan func(dest ...any) error) (domain.Document, error) {
	var (
		doc                  domain.Document
		raw                  string
		createdAt, updatedAt int64
	)
	if err := scan(&doc.ID, &doc.Collection, &doc.UniqueKey, &raw, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}
	data, err := decodeData([]byte(raw))
	if err != nil {
		return domain.Document{}, err
	}
	doc.Data = data
	doc.CreatedAt = fromMillis(createdAt)
	doc.UpdatedAt = fromMillis(updatedAt)
	return doc, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
