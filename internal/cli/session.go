package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/crudsync/internal/config"
	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/store"
	"github.com/roach88/crudsync/internal/strategy"
)

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "crudsync.yaml"

// session is one command's view of the store through a strategy.
type session struct {
	cfg      config.Config
	store    *store.Store
	gateway  *gateway.DocumentGateway
	strategy strategy.Strategy
	logger   *slog.Logger
}

// resolveConfig loads the config file and applies flag overrides.
func (o *RootOptions) resolveConfig() (config.Config, error) {
	path, required := o.ConfigPath, true
	if path == "" {
		path, required = DefaultConfigPath, false
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return config.Config{}, err
	}

	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Collection != "" {
		cfg.Collection = o.Collection
	}
	if o.Strategy != "" {
		cfg.Strategy = strategy.Kind(o.Strategy)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openSession resolves configuration and opens the store, gateway and
// strategy. Non-manual strategies are primed with one refresh so that the
// view holds the records later commands act on.
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid configuration", Err: err, ErrCode: ErrCodeConfig}
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	gw := gateway.NewDocumentGateway(st, cfg.Collection, gateway.WithLogger(logger))
	opts := append(cfg.StrategyOptions(), strategy.WithLogger(logger))
	strat, err := strategy.New(cfg.Strategy, gw, opts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid strategy", err)
	}

	s := &session{cfg: cfg, store: st, gateway: gw, strategy: strat, logger: logger}
	logger.Debug("session opened",
		"database", cfg.Database,
		"collection", cfg.Collection,
		"strategy", cfg.Strategy)

	if cfg.Strategy != strategy.KindManual {
		if _, err := s.refresh(ctx); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close store", "error", err)
	}
}

// refresh fetches the collection and returns the resulting view.
func (s *session) refresh(ctx context.Context) ([]entity.User, error) {
	o, err := s.strategy.Refresh(ctx).Wait(ctx)
	if err != nil {
		return nil, err
	}
	if o.Err != nil {
		return nil, o.Err
	}
	return s.strategy.View(), nil
}

// await waits for a mutation and any follow-up refresh it triggered.
func (s *session) await(ctx context.Context, t *strategy.Task) (strategy.Outcome, error) {
	o, err := t.Wait(ctx)
	if err != nil {
		return o, err
	}
	if err := s.strategy.Idle(ctx); err != nil {
		return o, err
	}
	return o, nil
}

// MutationResult is the payload reported for create, update and delete.
type MutationResult struct {
	Op       string        `json:"op"`
	ID       string        `json:"id"`
	Strategy strategy.Kind `json:"strategy"`
	Stale    bool          `json:"stale"`
	View     UserTable     `json:"view,omitempty"`
}

func (r MutationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)", r.Op, r.ID, r.Strategy)
	if len(r.View) > 0 {
		b.WriteString("\n")
		b.WriteString(r.View.String())
	}
	return b.String()
}

// UserTable renders users as an aligned table in text mode.
type UserTable []entity.User

func (t UserTable) String() string {
	if len(t) == 0 {
		return "No users."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE")
	for _, u := range t {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// runMutation dispatches one mutation through the session's strategy and
// reports its outcome.
func (o *RootOptions) runMutation(cmd *cobra.Command, op string, submit func(context.Context, strategy.Strategy) *strategy.Task) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := o.formatter(cmd)

	s, err := o.openSession(ctx, cmd)
	if err != nil {
		return o.report(out, err)
	}
	defer s.close()

	outcome, err := s.await(ctx, submit(ctx, s.strategy))
	if err != nil {
		return WrapExitError(ExitFailure, op+" interrupted", err)
	}
	if outcome.Err != nil {
		return out.Failure(outcome.Err)
	}

	result := MutationResult{
		Op:       op,
		ID:       outcome.ID,
		Strategy: s.strategy.Kind(),
		Stale:    s.strategy.Stale(),
	}
	if s.strategy.Kind() != strategy.KindManual {
		result.View = UserTable(s.strategy.View())
	}
	if err := out.Success(result); err != nil {
		return err
	}
	if s.strategy.Kind() == strategy.KindManual {
		out.Hint("View not refreshed; run 'crudsync list' to see the change.")
	}
	return nil
}

// report prints err and passes it through. Gateway failures become
// ExitFailure; anything else is a command error.
func (o *RootOptions) report(out *OutputFormatter, err error) error {
	var ge *gateway.Error
	if errors.As(err, &ge) {
		return out.Failure(err)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ErrCode
		if code == "" {
			code = ErrCodeCommand
		}
		_ = out.Error(code, exitErr.Error(), nil)
		return exitErr
	}
	_ = out.Error(ErrCodeCommand, err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}
