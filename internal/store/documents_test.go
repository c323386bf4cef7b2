package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestInsertAndList_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.InsertDocument(ctx, "users", id, map[string]any{"name": id}); err != nil {
			t.Fatalf("InsertDocument(%q) failed: %v", id, err)
		}
	}

	docs, err := s.ListDocuments(ctx, "users")
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}

	got := make([]string, len(docs))
	for i, d := range docs {
		got[i] = d.ID
	}
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("docs[%d].ID = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListDocuments_EmptyCollection(t *testing.T) {
	s := createTestStore(t)

	docs, err := s.ListDocuments(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	if docs == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}

func TestListDocuments_CollectionsIsolated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "users", "1", map[string]any{"name": "Ann"})
	mustInsert(t, s, "other", "1", map[string]any{"name": "Zed"})

	docs, err := s.ListDocuments(ctx, "users")
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Fields["name"] != "Ann" {
		t.Errorf("unexpected docs: %+v", docs)
	}
}

func TestInsertDocument_DuplicateID(t *testing.T) {
	s := createTestStore(t)

	mustInsert(t, s, "users", "1", map[string]any{"name": "Ann"})
	if _, err := s.InsertDocument(context.Background(), "users", "1", map[string]any{"name": "Bo"}); err == nil {
		t.Error("expected error inserting duplicate id")
	}
}

func TestMergeDocument_KeepsOtherFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "users", "1", map[string]any{"name": "Bo", "email": "b@x.com"})

	doc, err := s.MergeDocument(ctx, "users", "1", map[string]any{"name": "Bob"})
	if err != nil {
		t.Fatalf("MergeDocument() failed: %v", err)
	}
	if doc.Revision != 2 {
		t.Errorf("revision = %d, want 2", doc.Revision)
	}

	got := readDocument(t, s, "users", "1")
	if got.Fields["name"] != "Bob" {
		t.Errorf("name = %v, want Bob", got.Fields["name"])
	}
	if got.Fields["email"] != "b@x.com" {
		t.Errorf("email = %v, want b@x.com", got.Fields["email"])
	}
	if got.Revision != 2 {
		t.Errorf("stored revision = %d, want 2", got.Revision)
	}
}

func TestMergeDocument_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.MergeDocument(context.Background(), "users", "missing", map[string]any{"name": "x"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestMergeDocument_NullBody(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ('users', '1', 'null')
	`); err != nil {
		t.Fatalf("insert null body: %v", err)
	}

	doc, err := s.MergeDocument(ctx, "users", "1", map[string]any{"name": "Ann"})
	if err != nil {
		t.Fatalf("MergeDocument() failed: %v", err)
	}
	if doc.Fields["name"] != "Ann" {
		t.Errorf("name = %v, want Ann", doc.Fields["name"])
	}

	got := readDocument(t, s, "users", "1")
	if len(got.Fields) != 1 || got.Fields["name"] != "Ann" {
		t.Errorf("stored fields = %v, want only name", got.Fields)
	}
}

func TestDocumentExistsAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "users", "1", map[string]any{"name": "Ann"})

	ok, err := s.DocumentExists(ctx, "users", "1")
	if err != nil || !ok {
		t.Fatalf("DocumentExists() = %v, %v; want true, nil", ok, err)
	}

	deleted, err := s.DeleteDocument(ctx, "users", "1")
	if err != nil || !deleted {
		t.Fatalf("DeleteDocument() = %v, %v; want true, nil", deleted, err)
	}

	ok, err = s.DocumentExists(ctx, "users", "1")
	if err != nil || ok {
		t.Errorf("DocumentExists() after delete = %v, %v; want false, nil", ok, err)
	}

	deleted, err = s.DeleteDocument(ctx, "users", "1")
	if err != nil || deleted {
		t.Errorf("second DeleteDocument() = %v, %v; want false, nil", deleted, err)
	}
}

func TestDocumentFields_CanonicalRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "users", "1", map[string]any{"name": "<Ann & Co>", "visits": int64(9007199254740993)})

	var raw string
	if err := s.db.QueryRow("SELECT data FROM documents WHERE id = '1'").Scan(&raw); err != nil {
		t.Fatalf("raw select failed: %v", err)
	}
	if want := `{"name":"<Ann & Co>","visits":9007199254740993}`; raw != want {
		t.Errorf("stored data = %s, want %s", raw, want)
	}

	// Merge re-serializes the json.Number without losing precision.
	if _, err := s.MergeDocument(ctx, "users", "1", map[string]any{"name": "Ann"}); err != nil {
		t.Fatalf("MergeDocument() failed: %v", err)
	}
	if err := s.db.QueryRow("SELECT data FROM documents WHERE id = '1'").Scan(&raw); err != nil {
		t.Fatalf("raw select failed: %v", err)
	}
	if want := `{"name":"Ann","visits":9007199254740993}`; raw != want {
		t.Errorf("stored data = %s, want %s", raw, want)
	}
}
