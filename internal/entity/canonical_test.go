package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_User(t *testing.T) {
	b, err := MarshalCanonical(User{ID: "1", Name: "Bo", Email: "b@x.com", Phone: "222"})
	require.NoError(t, err)
	assert.Equal(t, `{"email":"b@x.com","id":"1","name":"Bo","phone":"222"}`, string(b))
}

func TestMarshalCanonical_OmitsEmptyID(t *testing.T) {
	b, err := MarshalCanonical(User{Name: "Ann", Email: "a", Phone: "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a","name":"Ann","phone":"1"}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	b, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(b))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	b, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(b))

	// A literal backslash followed by "u2028" stays escaped.
	b, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(b))
}

func TestMarshalCanonical_NestedAndSorted(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"z":     []any{1, true, "x"},
		"a":     int64(7),
		"users": []User{{ID: "u", Name: "N", Email: "E", Phone: "P"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"a":7,"users":[{"email":"E","id":"u","name":"N","phone":"P"}],"z":[1,true,"x"]}`,
		string(b))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null")

	_, err = MarshalCanonical(1.5)
	assert.ErrorContains(t, err, "floats")

	_, err = MarshalCanonical(map[string]any{"k": struct{}{}})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestCompareUTF16(t *testing.T) {
	// U+1F600 sorts after U+FF61 in UTF-8 but before it in UTF-16.
	assert.Negative(t, compareUTF16("\U0001F600", "\uFF61"))
	assert.Zero(t, compareUTF16("a", "a"))
}
