package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// Kind selects a synchronization strategy.
type Kind string

const (
	// KindManual never touches the view on mutation; the user refreshes.
	KindManual Kind = "manual"

	// KindOptimistic applies mutations to the view immediately and rolls
	// them back on failure.
	KindOptimistic Kind = "optimistic"

	// KindInvalidate leaves the view alone and refetches after successful
	// mutations.
	KindInvalidate Kind = "invalidate"
)

// Kinds lists every strategy kind.
var Kinds = []Kind{KindManual, KindOptimistic, KindInvalidate}

// ParseKind converts a strategy name into a Kind. "invalidate-on-success"
// is accepted as an alias of invalidate.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return KindManual, nil
	case "optimistic":
		return KindOptimistic, nil
	case "invalidate", "invalidate-on-success":
		return KindInvalidate, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want manual, optimistic or invalidate)", s)
	}
}

// Strategy keeps a local View of the collection in step with the store.
//
// Commands return immediately with a Task; the gateway call runs on its own
// goroutine. View, Pending and Stale may be read at any time and always
// return copies.
//
// Thread-safety: all methods are safe for concurrent use.
type Strategy interface {
	// Kind identifies the variant.
	Kind() Kind

	// Refresh fetches the collection and replaces the view on success.
	// Concurrent requests are coalesced.
	Refresh(ctx context.Context) *Task

	// SubmitCreate persists a new user.
	SubmitCreate(ctx context.Context, d entity.Draft) *Task

	// SubmitUpdate merges p into the user with id.
	SubmitUpdate(ctx context.Context, id string, p entity.Patch) *Task

	// SubmitDelete removes the user with id.
	SubmitDelete(ctx context.Context, id string) *Task

	// View returns a copy of the current view.
	View() []entity.User

	// Pending returns the unsettled mutations in dispatch order.
	Pending() []PendingOp

	// PendingKeys returns the distinct keys of unsettled mutations, in
	// dispatch order of their first pending op.
	PendingKeys() []string

	// Stale reports whether the view is known to lag the store.
	Stale() bool

	// Subscribe registers fn for failure notifications and returns a
	// function that removes it.
	Subscribe(fn func(Failure)) (unsubscribe func())

	// LastFailure returns the most recent failure, if any.
	LastFailure() (Failure, bool)

	// Idle blocks until no mutation is pending and no fetch is in flight
	// or queued.
	Idle(ctx context.Context) error
}

// New constructs the strategy named by kind.
func New(kind Kind, gw gateway.Gateway, opts ...Option) (Strategy, error) {
	switch kind {
	case KindManual:
		return NewManual(gw, opts...), nil
	case KindOptimistic:
		return NewOptimistic(gw, opts...), nil
	case KindInvalidate:
		return NewInvalidate(gw, opts...), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// options holds construction-time settings shared by all variants.
type options struct {
	logger  *slog.Logger
	timeout time.Duration
	tokens  gateway.IDGenerator
	guard   bool
	initial []entity.User
}

// Option configures a Strategy.
type Option func(*options)

// WithLogger sets the logger for settle and failure events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTimeout bounds each gateway call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTokenGenerator overrides how temporary keys for creates are made.
// Default: "tmp-" followed by a UUIDv7.
func WithTokenGenerator(g gateway.IDGenerator) Option {
	return func(o *options) {
		o.tokens = g
	}
}

// WithGenerationGuard makes the optimistic strategy skip a rollback when a
// later optimistic mutation has touched the same key. Without it the last
// settled rollback wins. Ignored by the other variants.
func WithGenerationGuard() Option {
	return func(o *options) {
		o.guard = true
	}
}

// WithInitialView seeds the view without a fetch.
func WithInitialView(users []entity.User) Option {
	return func(o *options) {
		o.initial = entity.Clone(users)
	}
}

// tempTokens generates temporary create keys.
type tempTokens struct{}

func (tempTokens) Generate() string {
	return "tmp-" + gateway.UUIDv7Generator{}.Generate()
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		tokens: tempTokens{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.initial == nil {
		o.initial = []entity.User{}
	}
	return o
}
