package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: delete u-1: user not found", NewNotFound(OpDelete, "u-1").Error())
	assert.Equal(t, "STORE_UNAVAILABLE: list: boom", NewUnavailable(OpList, "", "boom").Error())
	assert.Equal(t, "VALIDATION_FAILED: validation failed", (&Error{Kind: KindValidationFailed, Message: "validation failed"}).Error())
}

func TestNewValidationFailed(t *testing.T) {
	err := NewValidationFailed(OpCreate, "", []string{"name", "phone"})
	assert.Equal(t, KindValidationFailed, err.Kind)
	assert.Equal(t, []string{"name", "phone"}, err.Fields)
	assert.Contains(t, err.Message, "name, phone")
}

func TestKindHelpers_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewNotFound(OpUpdate, "x"))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsStoreUnavailable(wrapped))
	assert.False(t, IsValidationFailed(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestError_IsMatchesKind(t *testing.T) {
	err := NewNotFound(OpDelete, "a")
	assert.ErrorIs(t, err, &Error{Kind: KindNotFound})
	assert.NotErrorIs(t, err, &Error{Kind: KindStoreUnavailable})
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(OpList, "", nil))

	ge := NewNotFound(OpDelete, "a")
	assert.Same(t, ge, AsError(OpDelete, "a", ge))

	got := AsError(OpList, "", context.DeadlineExceeded)
	require.NotNil(t, got)
	assert.Equal(t, KindStoreUnavailable, got.Kind)
	assert.Equal(t, OpList, got.Op)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("not_found")
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, k)

	_, err = ParseKind("boom")
	assert.Error(t, err)
}
