package gateway

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/store"
)

// DefaultCollection is the collection users are stored in unless configured
// otherwise.
const DefaultCollection = "users"

// documentStore is the part of *store.Store the gateway uses.
type documentStore interface {
	ListDocuments(ctx context.Context, collection string) ([]store.Document, error)
	InsertDocument(ctx context.Context, collection, id string, fields map[string]any) (store.Document, error)
	MergeDocument(ctx context.Context, collection, id string, fields map[string]any) (store.Document, error)
	DocumentExists(ctx context.Context, collection, id string) (bool, error)
	DeleteDocument(ctx context.Context, collection, id string) (bool, error)
}

// DocumentGateway implements Gateway over a store.Store collection.
//
// Thread-safety: DocumentGateway has no mutable state after construction
// and is safe for concurrent use.
type DocumentGateway struct {
	store      documentStore
	collection string
	ids        IDGenerator
	logger     *slog.Logger
}

// Option configures a DocumentGateway.
type Option func(*DocumentGateway)

// WithIDGenerator overrides the id generator (default UUIDv7Generator).
func WithIDGenerator(g IDGenerator) Option {
	return func(d *DocumentGateway) {
		d.ids = g
	}
}

// WithLogger sets the logger used for translated backend errors.
func WithLogger(l *slog.Logger) Option {
	return func(d *DocumentGateway) {
		d.logger = l
	}
}

// NewDocumentGateway creates a gateway over collection in st.
// An empty collection falls back to DefaultCollection.
func NewDocumentGateway(st *store.Store, collection string, opts ...Option) *DocumentGateway {
	if collection == "" {
		collection = DefaultCollection
	}
	d := &DocumentGateway{
		store:      st,
		collection: collection,
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Collection returns the collection this gateway reads and writes.
func (d *DocumentGateway) Collection() string {
	return d.collection
}

// List implements Gateway.
func (d *DocumentGateway) List(ctx context.Context) ([]entity.User, error) {
	docs, err := d.store.ListDocuments(ctx, d.collection)
	if err != nil {
		return nil, d.translate(OpList, "", err)
	}

	users := make([]entity.User, len(docs))
	for i, doc := range docs {
		users[i] = entity.FromFields(doc.ID, doc.Fields)
	}
	return users, nil
}

// Create implements Gateway.
func (d *DocumentGateway) Create(ctx context.Context, draft entity.Draft) (string, error) {
	id := d.ids.Generate()
	if _, err := d.store.InsertDocument(ctx, d.collection, id, draft.Normalize().Fields()); err != nil {
		return "", d.translate(OpCreate, "", err)
	}
	d.logger.Debug("user created", "collection", d.collection, "id", id)
	return id, nil
}

// Update implements Gateway.
func (d *DocumentGateway) Update(ctx context.Context, id string, p entity.Patch) error {
	if _, err := d.store.MergeDocument(ctx, d.collection, id, p.Normalize().Fields()); err != nil {
		return d.translate(OpUpdate, id, err)
	}
	d.logger.Debug("user updated", "collection", d.collection, "id", id)
	return nil
}

// Delete implements Gateway.
//
// The existence check and the delete are separate statements. If another
// writer deletes the document in between, the delete affects no rows and
// the result is still NotFound; that race is benign.
func (d *DocumentGateway) Delete(ctx context.Context, id string) error {
	exists, err := d.store.DocumentExists(ctx, d.collection, id)
	if err != nil {
		return d.translate(OpDelete, id, err)
	}
	if !exists {
		return NewNotFound(OpDelete, id)
	}

	deleted, err := d.store.DeleteDocument(ctx, d.collection, id)
	if err != nil {
		return d.translate(OpDelete, id, err)
	}
	if !deleted {
		d.logger.Debug("user vanished between existence check and delete", "collection", d.collection, "id", id)
		return NewNotFound(OpDelete, id)
	}
	d.logger.Debug("user deleted", "collection", d.collection, "id", id)
	return nil
}

// translate maps a backend error onto the failure taxonomy and logs the
// original cause, which callers never see.
func (d *DocumentGateway) translate(op, id string, err error) *Error {
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFound(op, id)
	}

	d.logger.Error("store operation failed",
		"op", op,
		"collection", d.collection,
		"id", id,
		"error", err,
	)

	msg := "store unavailable"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "store request timed out"
	case errors.Is(err, context.Canceled):
		msg = "store request canceled"
	}
	return NewUnavailable(op, id, msg)
}
