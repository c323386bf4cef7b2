package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crudsync/internal/fixture"
	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/strategy"
)

// SeedResult reports the outcome of a seed run.
type SeedResult struct {
	File     string        `json:"file"`
	Created  []string      `json:"created"`
	Failed   []SeedFailure `json:"failed,omitempty"`
	Strategy strategy.Kind `json:"strategy"`
	View     UserTable     `json:"view,omitempty"`
}

// SeedFailure is one entry that could not be created.
type SeedFailure struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r SeedResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seeded %d of %d users from %s (%s)",
		len(r.Created), len(r.Created)+len(r.Failed), r.File, r.Strategy)
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n  users[%d]: [%s] %s", f.Index, f.Code, f.Message)
	}
	if len(r.View) > 0 {
		b.WriteString("\n")
		b.WriteString(r.View.String())
	}
	return b.String()
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.cue>",
		Short: "Create users from a CUE seed file",
		Long: `Create every user declared in a CUE seed file.

The file must declare a top-level users list whose entries have
non-empty name, email and phone fields:

  users: [
    {name: "Ann", email: "ann@example.com", phone: "555-0100"},
  ]

All creates are dispatched at once through the configured strategy.

Exit codes:
  0 - All users created
  1 - One or more creates failed
  2 - Command error (seed file invalid, database won't open)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	drafts, err := fixture.Load(path)
	if err != nil {
		return opts.report(out, &ExitError{
			Code:    ExitCommandError,
			Message: "invalid seed file",
			Err:     err,
			ErrCode: ErrCodeSeed,
		})
	}
	out.VerboseLog("Loaded %d users from %s", len(drafts), path)

	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return opts.report(out, err)
	}
	defer s.close()

	tasks := make([]*strategy.Task, len(drafts))
	for i, d := range drafts {
		tasks[i] = s.strategy.SubmitCreate(ctx, d)
	}

	result := SeedResult{File: path, Created: []string{}, Strategy: s.strategy.Kind()}
	for i, t := range tasks {
		o, err := t.Wait(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "seed interrupted", err)
		}
		if o.OK() {
			result.Created = append(result.Created, o.ID)
			continue
		}
		result.Failed = append(result.Failed, SeedFailure{
			Index:   i,
			Code:    string(gateway.KindOf(o.Err)),
			Message: o.Err.Error(),
		})
	}
	if err := s.strategy.Idle(ctx); err != nil {
		return WrapExitError(ExitFailure, "seed interrupted", err)
	}
	if s.strategy.Kind() != strategy.KindManual {
		result.View = UserTable(s.strategy.View())
	}

	if err := out.Success(result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d creates failed", len(result.Failed), len(drafts)))
	}
	if s.strategy.Kind() == strategy.KindManual {
		out.Hint("View not refreshed; run 'crudsync list' to see the new users.")
	}
	return nil
}
