package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/db"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const adapterPostgres = "postgres"

type PgRepository struct {
	pool  *pgxpool.Pool
	log   *logger.Logger
	retry db.RetryConfig
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log, retry: db.DefaultRetryConfig}
}

func (r *PgRepository) Adapter() string { return adapterPostgres }

func (r *PgRepository) Migrate(ctx context.Context) error {
	applied, err := db.ApplyPgMigrations(ctx, r.pool, migrations(adapterPostgres))
	if err != nil {
		return err
	}
	metrics.DBMigrationsApplied.WithLabelValues(adapterPostgres).Add(float64(applied))
	if applied > 0 {
		r.log.Infof("postgres: applied %d migrations", applied)
	}
	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgRepository) Insert(ctx context.Context, doc domain.Document) error {
	start := time.Now()
	data, err := encodeData(doc.Data)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO documents (id, collection, unique_key, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		doc.ID,
		doc.Collection,
		nullableKey(doc.UniqueKey),
		data,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if db.IsPgUniqueViolation(err) {
		db.MeasureQueryDuration(adapterPostgres, "insert document", start)
		return ErrDuplicateKey
	}
	return db.HandleExecError(adapterPostgres, err, "insert document", start)
}

func (r *PgRepository) Find(ctx context.Context, collection string, q domain.Query) ([]domain.Document, error) {
	if err := validateWhere(q.Where); err != nil {
		return nil, err
	}

	clause, args := pgWhere(collection, q.Where)
	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents
		 WHERE %s
		 ORDER BY created_at DESC, id
		 LIMIT $%d OFFSET $%d`,
		clause, len(args)-1, len(args),
	)

	var docs []domain.Document
	err := db.RetryWithBackoff(ctx, r.log, r.retry, func(ctx context.Context) error {
		start := time.Now()
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return db.HandleQueryError(adapterPostgres, err, nil, "find documents", start)
		}
		defer rows.Close()

		docs = docs[:0]
		for rows.Next() {
			doc, err := scanPg(rows.Scan)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return db.HandleQueryError(adapterPostgres, rows.Err(), nil, "find documents", start)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *PgRepository) Count(ctx context.Context, collection string, where map[string]string) (int, error) {
	if err := validateWhere(where); err != nil {
		return 0, err
	}

	clause, args := pgWhere(collection, where)
	var total int
	err := db.RetryWithBackoff(ctx, r.log, r.retry, func(ctx context.Context) error {
		start := time.Now()
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+clause, args...).Scan(&total)
		return db.HandleQueryError(adapterPostgres, err, nil, "count documents", start)
	})
	return total, err
}

func (r *PgRepository) FindByID(ctx context.Context, collection, id string) (domain.Document, error) {
	return r.findOne(ctx, "find document by id",
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
}

func (r *PgRepository) FindByUniqueKey(ctx context.Context, collection, key string) (domain.Document, error) {
	return r.findOne(ctx, "find document by unique key",
		`SELECT id, collection, COALESCE(unique_key, ''), data, created_at, updated_at
		 FROM documents WHERE collection = $1 AND unique_key = $2`,
		collection, key,
	)
}

func (r *PgRepository) findOne(ctx context.Context, operation, query string, args ...any) (domain.Document, error) {
	start := time.Now()
	doc, err := scanPg(r.pool.QueryRow(ctx, query, args...).Scan)
	if err != nil {
		return domain.Document{}, db.HandleQueryError(adapterPostgres, err, ErrDocumentNotFound, operation, start)
	}
	db.MeasureQueryDuration(adapterPostgres, operation, start)
	return doc, nil
}

func (r *PgRepository) Update(ctx context.Context, doc domain.Document) error {
	start := time.Now()
	data, err := encodeData(doc.Data)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE documents SET unique_key = $3, data = $4::jsonb, updated_at = $5
		 WHERE collection = $1 AND id = $2`,
		doc.Collection,
		doc.ID,
		nullableKey(doc.UniqueKey),
		data,
		doc.UpdatedAt,
	)
	if db.IsPgUniqueViolation(err) {
		db.MeasureQueryDuration(adapterPostgres, "update document", start)
		return ErrDuplicateKey
	}
	if err := db.HandleExecError(adapterPostgres, err, "update document", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err := db.HandleExecError(adapterPostgres, err, "delete document", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func pgWhere(collection string, where map[string]string) (string, []any) {
	parts := []string{"collection = $1"}
	args := []any{collection}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k, where[k])
		parts = append(parts, fmt.Sprintf("data->>$%d = $%d", len(args)-1, len(args)))
	}
	return strings.Join(parts, " AND "), args
}

func scanPg(scan func(dest ...any) error) (domain.Document, error) {
	var (
		doc domain.Document
		raw []byte
	)
	if err := scan(&doc.ID, &doc.Collection, &doc.UniqueKey, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return domain.Document{}, err
	}
	data, err := decodeData(raw)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}
