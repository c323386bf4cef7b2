package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, collection, id string, fields map[string]any) {
	t.Helper()
	if _, err := s.InsertDocument(context.Background(), collection, id, fields); err != nil {
		t.Fatalf("InsertDocument(%s/%s) failed: %v", collection, id, err)
	}
}

// readDocument returns the document with id, failing the test if it is missing.
func readDocument(t *testing.T, s *Store, collection, id string) Document {
	t.Helper()
	docs, err := s.ListDocuments(context.Background(), collection)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	for _, doc := range docs {
		if doc.ID == id {
			return doc
		}
	}
	t.Fatalf("document %s/%s not found", collection, id)
	return Document{}
}
