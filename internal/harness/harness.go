package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/store"
	"github.com/roach88/crudsync/internal/strategy"
	"github.com/roach88/crudsync/internal/testutil"
)

// Trace phases.
const (
	PhaseDispatched = "dispatched"
	PhaseSettled    = "settled"
)

// TraceEvent is a snapshot of strategy state after a step was dispatched
// or settled.
type TraceEvent struct {
	Step    int           `json:"step"`
	Op      string        `json:"op"`
	Phase   string        `json:"phase"`
	Outcome string        `json:"outcome,omitempty"`
	View    []entity.User `json:"view"`
	Pending []string      `json:"pending"`
	Stale   bool          `json:"stale"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Trace contains one event per dispatch and settle, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists unmet expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// View is the final view.
	View []entity.User `json:"view"`

	// Failures lists reported failures as "op:KIND".
	Failures []string `json:"failures"`

	// Calls counts gateway calls per operation.
	Calls map[string]int `json:"calls"`
}

// NewResult creates a passing result with empty collections.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		View:     []entity.User{},
		Failures: []string{},
		Calls:    map[string]int{},
	}
}

// AddError adds an unmet expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// parked is a mutation whose gateway call is held on a gate.
type parked struct {
	step int
	op   string
	task *strategy.Task
	gate *testutil.Gate
}

// Harness runs one scenario against a fresh in-memory store.
//
// Mutating gateway calls are held on gates so every dispatch snapshot is
// taken before the call can settle, and calls settle one at a time in a
// scenario-defined order. Refreshes requested during a settle step wait
// until the whole step has settled. This keeps traces identical across runs.
type Harness struct {
	strategy strategy.Strategy
	faulty   *testutil.FaultyGateway
	gates    map[string]*testutil.Gate
	parked   []parked
	result   *Result
	logger   *slog.Logger

	mu       sync.Mutex
	failures []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Ids are
// deterministic: seeded and created users get user-1, user-2, ... in store
// order, and temporary create keys are tmp-1, tmp-2, ...
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	kind, err := strategy.ParseKind(scenario.Strategy)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.NewDocumentGateway(st, gateway.DefaultCollection,
		gateway.WithIDGenerator(gateway.NewSequenceGenerator("user")),
		gateway.WithLogger(logger))

	for i, d := range scenario.Seed {
		if _, err := gw.Create(ctx, d.Normalize()); err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	initial, err := gw.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}

	faulty := testutil.NewFaultyGateway(gw)
	opts := []strategy.Option{
		strategy.WithLogger(logger),
		strategy.WithTokenGenerator(gateway.NewSequenceGenerator("tmp")),
		strategy.WithInitialView(initial),
	}
	if scenario.GenerationGuard {
		opts = append(opts, strategy.WithGenerationGuard())
	}
	s, err := strategy.New(kind, faulty, opts...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		strategy: s,
		faulty:   faulty,
		gates: map[string]*testutil.Gate{
			gateway.OpCreate: faulty.Hold(gateway.OpCreate),
			gateway.OpUpdate: faulty.Hold(gateway.OpUpdate),
			gateway.OpDelete: faulty.Hold(gateway.OpDelete),
		},
		result: NewResult(),
		logger: logger,
	}
	unsubscribe := s.Subscribe(h.recordFailure)
	defer unsubscribe()

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}
	if err := h.settleAll(ctx, false); err != nil {
		return nil, fmt.Errorf("final settle: %w", err)
	}
	if err := s.Idle(ctx); err != nil {
		return nil, fmt.Errorf("waiting for idle: %w", err)
	}

	h.mu.Lock()
	h.result.Failures = append(h.result.Failures, h.failures...)
	h.mu.Unlock()
	h.result.View = s.View()
	h.result.Calls = faulty.CallCounts()

	h.check(scenario.Expect, len(s.Pending()))
	return h.result, nil
}

func (h *Harness) recordFailure(f strategy.Failure) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, fmt.Sprintf("%s:%s", f.Op, f.Kind()))
}

// execute runs one step.
func (h *Harness) execute(ctx context.Context, i int, step Step) error {
	if step.Fail != "" {
		kind, err := gateway.ParseKind(step.Fail)
		if err != nil {
			return err
		}
		h.faulty.FailNext(step.gatewayOp(), kind)
	}

	switch step.Op {
	case StepSettle:
		if err := h.settleAll(ctx, step.Reverse); err != nil {
			return err
		}
		if err := h.strategy.Idle(ctx); err != nil {
			return err
		}
		h.record(i, step.Op, PhaseSettled, "")
		return nil

	case StepRefresh:
		out, err := h.strategy.Refresh(ctx).Wait(ctx)
		if err != nil {
			return err
		}
		if err := h.quiesce(ctx); err != nil {
			return err
		}
		h.record(i, step.Op, PhaseSettled, outcome(out))
		return nil
	}

	gate := h.gates[step.gatewayOp()]
	before := gate.Parked()

	var task *strategy.Task
	switch step.Op {
	case StepCreate:
		task = h.strategy.SubmitCreate(ctx, step.draft())
	case StepUpdate:
		task = h.strategy.SubmitUpdate(ctx, step.ID, step.patch())
	case StepDelete:
		task = h.strategy.SubmitDelete(ctx, step.ID)
	}

	if out, done := task.Result(); done {
		// Rejected before reaching the gateway.
		h.record(i, step.Op, PhaseSettled, outcome(out))
		return nil
	}

	if err := gate.WaitParked(ctx, before+1); err != nil {
		return err
	}
	h.record(i, step.Op, PhaseDispatched, "")

	if step.Async {
		h.parked = append(h.parked, parked{step: i, op: step.Op, task: task, gate: gate})
		return nil
	}

	gate.ReleaseLast()
	out, err := task.Wait(ctx)
	if err != nil {
		return err
	}
	if err := h.quiesce(ctx); err != nil {
		return err
	}
	h.record(i, step.Op, PhaseSettled, outcome(out))
	return nil
}

// settleAll releases parked calls one at a time, waiting for each to
// settle before releasing the next. List calls are held until the last one
// has settled, so refreshes the settles request see all of them.
func (h *Harness) settleAll(ctx context.Context, reverse bool) error {
	if len(h.parked) == 0 {
		return nil
	}
	h.faulty.Hold(gateway.OpList)
	defer h.faulty.Release(gateway.OpList)

	for len(h.parked) > 0 {
		var p parked
		if reverse {
			p = h.parked[len(h.parked)-1]
			h.parked = h.parked[:len(h.parked)-1]
			p.gate.ReleaseLast()
		} else {
			p = h.parked[0]
			h.parked = h.parked[1:]
			p.gate.ReleaseNext()
		}
		out, err := p.task.Wait(ctx)
		if err != nil {
			return err
		}
		h.logger.Debug("parked call settled", "step", p.step, "op", p.op, "outcome", outcome(out))
	}
	return nil
}

// quiesce waits for follow-up fetches when nothing is parked. While calls
// are parked the strategy cannot become idle.
func (h *Harness) quiesce(ctx context.Context) error {
	if len(h.parked) > 0 {
		return nil
	}
	return h.strategy.Idle(ctx)
}

func (h *Harness) record(step int, op, phase, result string) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Step:    step,
		Op:      op,
		Phase:   phase,
		Outcome: result,
		View:    h.strategy.View(),
		Pending: h.strategy.PendingKeys(),
		Stale:   h.strategy.Stale(),
	})
}

// check compares the final state with the scenario's expectations.
func (h *Harness) check(want Expect, pending int) {
	r := h.result

	if want.View != nil && !reflect.DeepEqual(want.View, r.View) {
		r.AddError("view: expected %v, got %v", want.View, r.View)
	}

	if want.Failures != nil && !reflect.DeepEqual(want.Failures, r.Failures) {
		r.AddError("failures: expected %v, got %v", want.Failures, r.Failures)
	}

	if want.Calls != nil {
		for _, op := range []string{gateway.OpList, gateway.OpCreate, gateway.OpUpdate, gateway.OpDelete} {
			if want.Calls[op] != r.Calls[op] {
				r.AddError("calls[%s]: expected %d, got %d", op, want.Calls[op], r.Calls[op])
			}
		}
	}

	if want.Pending != nil && *want.Pending != pending {
		r.AddError("pending: expected %d, got %d", *want.Pending, pending)
	}
}

func outcome(o strategy.Outcome) string {
	if o.OK() {
		return "ok"
	}
	return string(gateway.KindOf(o.Err))
}
