package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/strategy"
)

// UserFlags holds the field flags shared by create and update.
type UserFlags struct {
	Name  string
	Email string
	Phone string
}

func (f *UserFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Name, "name", "", "user name")
	cmd.Flags().StringVar(&f.Email, "email", "", "user email")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "user phone")
}

func (f *UserFlags) draft() entity.Draft {
	return entity.Draft{Name: f.Name, Email: f.Email, Phone: f.Phone}
}

// patch includes only the flags that were set on the command line, so an
// explicit empty value reaches validation instead of being dropped.
func (f *UserFlags) patch(cmd *cobra.Command) entity.Patch {
	var p entity.Patch
	if cmd.Flags().Changed("name") {
		p.Name = entity.String(f.Name)
	}
	if cmd.Flags().Changed("email") {
		p.Email = entity.String(f.Email)
	}
	if cmd.Flags().Changed("phone") {
		p.Phone = entity.String(f.Phone)
	}
	return p
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Fetch and print all users",
		Long: `Fetch the user collection from the store and print it.

Exit codes:
  0 - Users listed
  1 - Store unavailable
  2 - Command error (bad configuration, database won't open)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return opts.report(out, err)
	}
	defer s.close()

	// Non-manual sessions were primed on open.
	users := s.strategy.View()
	if s.strategy.Kind() == strategy.KindManual {
		users, err = s.refresh(ctx)
		if err != nil {
			return opts.report(out, err)
		}
	}
	return out.Success(UserTable(users))
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &UserFlags{}

	cmd := &cobra.Command{
		Use:   "create --name <name> --email <email> --phone <phone>",
		Short: "Create a user",
		Long: `Create a user through the configured strategy.

All three fields are required and must not be blank.

Examples:
  crudsync create --name Ann --email ann@example.com --phone 555-0100
  crudsync create --strategy optimistic --name Ann --email a@x --phone 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := flags.draft()
			return rootOpts.runMutation(cmd, "create", func(ctx context.Context, s strategy.Strategy) *strategy.Task {
				return s.SubmitCreate(ctx, d)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &UserFlags{}

	cmd := &cobra.Command{
		Use:   "update <id> [--name <name>] [--email <email>] [--phone <phone>]",
		Short: "Update fields of a user",
		Long: `Update the given fields of an existing user.

Only flags present on the command line are sent; at least one is required.

Examples:
  crudsync update 0190c6f2-... --name "Ann Lee"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, p := args[0], flags.patch(cmd)
			return rootOpts.runMutation(cmd, "update", func(ctx context.Context, s strategy.Strategy) *strategy.Task {
				return s.SubmitUpdate(ctx, id, p)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return rootOpts.runMutation(cmd, "delete", func(ctx context.Context, s strategy.Strategy) *strategy.Task {
				return s.SubmitDelete(ctx, id)
			})
		},
	}
}
