package repository

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

var (
	ErrDocumentNotFound = commonerrors.ErrDocumentNotFound
	ErrDuplicateKey     = commonerrors.ErrDuplicateKey

	wherePathPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// Repository persists documents of every collection in one table. It knows
// nothing about collection schemas; the service layer validates data first.
type Repository interface {
	Insert(ctx context.Context, doc domain.Document) error
	Find(ctx context.Context, collection string, q domain.Query) ([]domain.Document, error)
	Count(ctx context.Context, collection string, where map[string]string) (int, error)
	FindByID(ctx context.Context, collection, id string) (domain.Document, error)
	FindByUniqueKey(ctx context.Context, collection, key string) (domain.Document, error)
	Update(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
	Adapter() string
}

func migrations(dialect string) fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations for %s: %v", dialect, err))
	}
	return sub
}

func validateWhere(where map[string]string) error {
	for field := range where {
		if !wherePathPattern.MatchString(field) {
			return commonerrors.ErrValidation.WithDetails(map[string]any{"where": field})
		}
	}
	return nil
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document data: %w", err)
	}
	return string(raw), nil
}

func decodeData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document data: %w", err)
	}
	return data, nil
}

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
