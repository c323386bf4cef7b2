// Package strategy keeps a local view of a user collection consistent with
// the record store.
//
// Three interchangeable variants implement Strategy:
//
//   - Manual: mutations never touch the view; the user calls Refresh.
//   - Optimistic: mutations change the view immediately and are rolled
//     back if the gateway call fails.
//   - Invalidate: the view is refetched after mutations succeed.
//
// Every command returns a *Task that settles once with an Outcome. Failed
// commands are also reported to subscribers as a Failure. Validation runs
// before any gateway call, so a ValidationFailed outcome never costs a
// round trip.
//
// Refreshes are coalesced: at most one fetch runs at a time and requests
// arriving meanwhile share a single follow-up fetch. A follow-up requested
// only by mutation successes is dropped when the fetch in flight already
// shows them.
//
// Example:
//
//	s, err := strategy.New(strategy.KindOptimistic, gw)
//	if err != nil {
//	    return err
//	}
//	out, err := s.SubmitCreate(ctx, draft).Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	if !out.OK() {
//	    fmt.Println("create failed:", out.Err)
//	}
package strategy
