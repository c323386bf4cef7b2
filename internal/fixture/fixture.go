// Package fixture loads seed users from CUE files.
//
// A seed file declares a top-level users list:
//
//	users: [
//		{name: "Ann", email: "ann@example.com", phone: "555-0100"},
//	]
//
// Each entry is checked against a closed schema: name, email and phone are
// required non-empty strings and no other fields are allowed.
package fixture

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/crudsync/internal/entity"
)

const schemaSource = `
#User: {
	name:  string & !=""
	email: string & !=""
	phone: string & !=""
}

users: [...#User]
`

// CompileError describes a seed file that does not satisfy the schema.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and compiles the seed file at path.
func Load(path string) ([]entity.Draft, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Compile(path, src)
}

// Compile checks src against the seed schema and returns its users as
// normalized drafts, in file order. filename is used in error positions.
func Compile(filename string, src []byte) ([]entity.Draft, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("seed-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("seed schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	users := data.LookupPath(cue.ParsePath("users"))
	if !users.Exists() {
		return nil, &CompileError{
			Field:   "users",
			Message: "users list is required",
			Pos:     data.Pos(),
		}
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var drafts []entity.Draft
	if err := v.LookupPath(cue.ParsePath("users")).Decode(&drafts); err != nil {
		return nil, formatCUEError(err)
	}
	for i := range drafts {
		drafts[i] = drafts[i].Normalize()
		if missing := drafts[i].Missing(); len(missing) > 0 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("users[%d].%s", i, missing[0]),
				Message: "must not be blank",
			}
		}
	}
	return drafts, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
