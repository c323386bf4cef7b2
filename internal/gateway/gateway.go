package gateway

import (
	"context"

	"github.com/roach88/crudsync/internal/entity"
)

// Operation names used in failures and logs.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Gateway is the record store boundary.
//
// Every method returns either nil or a *Error; backend errors never escape.
// Implementations hold no mutable state of their own and must be safe for
// concurrent use by any number of strategies.
type Gateway interface {
	// List returns every user in store order. Not guaranteed stable across
	// calls.
	List(ctx context.Context) ([]entity.User, error)

	// Create persists a new user and returns its store-assigned id.
	// Not idempotent: retrying creates a duplicate. Does not validate.
	Create(ctx context.Context, d entity.Draft) (string, error)

	// Update merges the patch's present fields into the user with id.
	// Fails with KindNotFound if no such user exists.
	Update(ctx context.Context, id string, p entity.Patch) error

	// Delete removes the user with id. Fails with KindNotFound if it does
	// not exist.
	Delete(ctx context.Context, id string) error
}
