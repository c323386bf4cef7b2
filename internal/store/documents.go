package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/crudsync/internal/entity"
)

// Document is one stored JSON object.
type Document struct {
	Collection string
	ID         string
	Fields     map[string]any
	Seq        int64 // insertion order
	Revision   int64 // bumped on every merge
}

// ListDocuments returns every document in a collection in insertion order.
// Returns an empty slice (not nil) for an empty or unknown collection.
func (s *Store) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, collection, id, data, revision
		FROM documents
		WHERE collection = ?
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// InsertDocument stores a new document under id.
// Fails if the id is already taken in the collection; there is no upsert.
func (s *Store) InsertDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	data, err := marshalFields(fields)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES (?, ?, ?)
	`, collection, id, data)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return Document{}, fmt.Errorf("insert document: last insert id: %w", err)
	}

	return Document{
		Collection: collection,
		ID:         id,
		Fields:     fields,
		Seq:        seq,
		Revision:   1,
	}, nil
}

// MergeDocument overwrites the given fields of an existing document and
// leaves the others alone. Returns an error wrapping sql.ErrNoRows if the
// document does not exist.
//
// The read and write share a transaction, so concurrent merges to the same
// document do not lose fields.
func (s *Store) MergeDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("merge document: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	row := tx.QueryRowContext(ctx, `
		SELECT seq, collection, id, data, revision
		FROM documents
		WHERE collection = ? AND id = ?
	`, collection, id)

	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("merge document %s/%s: %w", collection, id, err)
	}

	for k, v := range fields {
		doc.Fields[k] = v
	}
	data, err := marshalFields(doc.Fields)
	if err != nil {
		return Document{}, fmt.Errorf("merge document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET data = ?, revision = revision + 1
		WHERE collection = ? AND id = ?
	`, data, collection, id); err != nil {
		return Document{}, fmt.Errorf("merge document: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("merge document: commit: %w", err)
	}

	doc.Revision++
	return doc, nil
}

// DocumentExists reports whether a document with id is in the collection.
func (s *Store) DocumentExists(ctx context.Context, collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("document exists: %w", err)
	}
	return true, nil
}

// DeleteDocument removes a document. Returns false if nothing was deleted.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, collection, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document: rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var data string
	if err := row.Scan(&doc.Seq, &doc.Collection, &doc.ID, &data, &doc.Revision); err != nil {
		return Document{}, err
	}

	fields, err := unmarshalFields(data)
	if err != nil {
		return Document{}, err
	}
	doc.Fields = fields
	return doc, nil
}

// marshalFields converts a document body to canonical JSON TEXT for storage.
func marshalFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := entity.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses a stored document body. Numbers stay json.Number
// so large integers survive the round trip.
func unmarshalFields(data string) (map[string]any, error) {
	fields := map[string]any{}
	if data == "" || data == "{}" {
		return fields, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if fields == nil {
		// A stored null body decodes to a nil map.
		fields = map[string]any{}
	}
	return fields, nil
}
