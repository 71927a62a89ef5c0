package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const pgUniqueViolation = "23505"

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func IsPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// HandleQueryError records timing and maps a no-rows result to notFoundErr.
func HandleQueryError(adapter string, err error, notFoundErr error, operation string, startTime time.Time) error {
	MeasureQueryDuration(adapter, operation, startTime)

	if err == nil {
		return nil
	}
	if IsNoRows(err) {
		return notFoundErr
	}
	metrics.DBQueryErrors.WithLabelValues(adapter, operation, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func HandleExecError(adapter string, err error, operation string, startTime time.Time) error {
	MeasureQueryDuration(adapter, operation, startTime)

	if err == nil {
		return nil
	}
	metrics.DBQueryErrors.WithLabelValues(adapter, operation, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func MeasureQueryDuration(adapter, operation string, startTime time.Time) {
	metrics.DBQueryDurationSeconds.WithLabelValues(adapter, operation).Observe(time.Since(startTime).Seconds())
}
