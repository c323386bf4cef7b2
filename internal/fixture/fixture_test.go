package fixture

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/entity"
)

func TestCompile(t *testing.T) {
	drafts, err := Compile("seed.cue", []byte(`
users: [
	{name: "Ann", email: "ann@example.com", phone: "555-0100"},
	{name: " Bo ", email: "bo@example.com", phone: "555-0101"},
]
`))
	require.NoError(t, err)

	assert.Equal(t, []entity.Draft{
		{Name: "Ann", Email: "ann@example.com", Phone: "555-0100"},
		{Name: "Bo", Email: "bo@example.com", Phone: "555-0101"},
	}, drafts)
}

func TestCompile_EmptyList(t *testing.T) {
	drafts, err := Compile("seed.cue", []byte(`users: []`))
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestCompile_MissingName(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`
users: [
	{email: "ann@example.com", phone: "555-0100"},
]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestCompile_EmptyNameHasPosition(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`users: [{name: "", email: "a@x", phone: "1"}]`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
}

func TestCompile_BlankAfterTrim(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`users: [{name: "   ", email: "a@x", phone: "1"}]`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "users[0].name", ce.Field)
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`users: [{name: "A", email: "a@x", phone: "1", age: 3}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age")
}

func TestCompile_RequiresUsers(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`people: []`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "users", ce.Field)
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("seed.cue", []byte(`users: [`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.cue")
	require.NoError(t, os.WriteFile(path, []byte(`users: [{name: "A", email: "a@x", phone: "1"}]`), 0o644))

	drafts, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
