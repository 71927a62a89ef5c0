package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/repository"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

func openTestRepo(t *testing.T) *repository.SQLiteRepository {
	t.Helper()
	log, _ := logger.New("", "test", "error")
	repo, err := repository.OpenSQLite(context.Background(), repository.MemoryPath, log)
	if err != nil {
		t.Fatalf("failed to open sqlite repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testDoc(id, collection string, at time.Time, data map[string]any) domain.Document {
	return domain.Document{
		ID:         id,
		Collection: collection,
		Data:       data,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestSQLiteRepository_InsertAndFindByID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	doc := testDoc("page-1", "pages", at, map[string]any{"title": "Hello"})
	if err := repo.Insert(ctx, doc); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	found, err := repo.FindByID(ctx, "pages", "page-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found.String("title") != "Hello" {
		t.Errorf("expected title Hello, got %q", found.String("title"))
	}
	if !found.CreatedAt.Equal(at) {
		t.Errorf("expected created at %v, got %v", at, found.CreatedAt)
	}

	if _, err := repo.FindByID(ctx, "media", "page-1"); !errors.Is(err, repository.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound across collections, got %v", err)
	}
}

func TestSQLiteRepository_UniqueKeyEnforced(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	first := testDoc("user-1", "users", at, map[string]any{"email": "dev@payloadcms.com"})
	first.UniqueKey = "dev@payloadcms.com"
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	second := testDoc("user-2", "users", at, map[string]any{"email": "dev@payloadcms.com"})
	second.UniqueKey = "dev@payloadcms.com"
	if err := repo.Insert(ctx, second); !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	other := testDoc("member-1", "members", at, map[string]any{"email": "dev@payloadcms.com"})
	other.UniqueKey = "dev@payloadcms.com"
	if err := repo.Insert(ctx, other); err != nil {
		t.Errorf("expected same key in another collection to be allowed, got %v", err)
	}

	found, err := repo.FindByUniqueKey(ctx, "users", "dev@payloadcms.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found.ID != "user-1" {
		t.Errorf("expected user-1, got %s", found.ID)
	}
}

func TestSQLiteRepository_DocumentsWithoutKeyAreNotUnique(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	for _, id := range []string{"a", "b"} {
		if err := repo.Insert(ctx, testDoc(id, "pages", at, nil)); err != nil {
			t.Fatalf("expected no error inserting %s, got %v", id, err)
		}
	}

	total, err := repo.Count(ctx, "pages", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 documents, got %d", total)
	}
}

func TestSQLiteRepository_FindOrderingLimitAndWhere(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	docs := []domain.Document{
		testDoc("p1", "pages", base, map[string]any{"title": "one", "lang": "en"}),
		testDoc("p2", "pages", base.Add(time.Minute), map[string]any{"title": "two", "lang": "fa"}),
		testDoc("p3", "pages", base.Add(2*time.Minute), map[string]any{"title": "three", "lang": "en"}),
		testDoc("m1", "media", base, map[string]any{"text": "logo"}),
	}
	for _, d := range docs {
		if err := repo.Insert(ctx, d); err != nil {
			t.Fatalf("insert %s: %v", d.ID, err)
		}
	}

	got, err := repo.Find(ctx, "pages", domain.Query{Limit: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].ID != "p3" || got[1].ID != "p2" {
		t.Fatalf("expected newest first [p3 p2], got %v", ids(got))
	}

	got, err = repo.Find(ctx, "pages", domain.Query{Limit: 10, Offset: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected [p1] at offset 2, got %v", ids(got))
	}

	where := map[string]string{"lang": "en"}
	got, err = repo.Find(ctx, "pages", domain.Query{Limit: 10, Where: where})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 english pages, got %v", ids(got))
	}

	total, err := repo.Count(ctx, "pages", where)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 2 {
		t.Errorf("expected count 2, got %d", total)
	}

	if _, err := repo.Find(ctx, "pages", domain.Query{Limit: 1, Where: map[string]string{"bad key'": "x"}}); err == nil {
		t.Error("expected invalid where field to be rejected")
	}
}

func TestSQLiteRepository_UpdateAndDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	if err := repo.Insert(ctx, testDoc("p1", "pages", at, map[string]any{"title": "old"})); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated := testDoc("p1", "pages", at, map[string]any{"title": "new"})
	updated.UpdatedAt = at.Add(time.Hour)
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	found, _ := repo.FindByID(ctx, "pages", "p1")
	if found.String("title") != "new" {
		t.Errorf("expected title new, got %q", found.String("title"))
	}

	if err := repo.Update(ctx, testDoc("missing", "pages", at, nil)); !errors.Is(err, repository.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound on update, got %v", err)
	}

	if err := repo.Delete(ctx, "pages", "p1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := repo.Delete(ctx, "pages", "p1"); !errors.Is(err, repository.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound on second delete, got %v", err)
	}
}

func ids(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestSQLiteRepository_WhereMatchesBooleansAsText(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	docs := []domain.Document{
		testDoc("p1", "pages", at, map[string]any{"published": true, "views": 3}),
		testDoc("p2", "pages", at, map[string]any{"published": false, "views": 4}),
	}
	for _, d := range docs {
		if err := repo.Insert(ctx, d); err != nil {
			t.Fatalf("insert %s: %v", d.ID, err)
		}
	}

	cases := []struct {
		where map[string]string
		want  int
	}{
		{map[string]string{"published": "true"}, 1},
		{map[string]string{"published": "false"}, 1},
		{map[string]string{"published": "1"}, 0},
		{map[string]string{"views": "3"}, 1},
		{map[string]string{"published": "true", "views": "4"}, 0},
	}
	for _, tc := range cases {
		total, err := repo.Count(ctx, "pages", tc.where)
		if err != nil {
			t.Fatalf("count %v: %v", tc.where, err)
		}
		if total != tc.want {
			t.Errorf("where %v: expected %d, got %d", tc.where, tc.want, total)
		}
	}
}
