package ratelimit

import "time"

// windowState is the persisted part of one identity's admission window.
type windowState struct {
	exists bool
	start  time.Time
	count  int
}

// decide applies the fixed-window rules to state and returns the next state.
// A window is reset only once now-start strictly exceeds the window length.
// Denied calls leave the state untouched.
func decide(state windowState, policy Policy, now time.Time) (windowState, Result) {
	policy = policy.normalized()
	if policy.MaxPerWindow <= 0 {
		return state, Result{Allowed: true, Count: state.count, WindowStart: state.start}
	}

	if !state.exists || now.Sub(state.start) > policy.Window {
		next := windowState{exists: true, start: now, count: 1}
		return next, resultFor(next, policy, true)
	}
	if state.count < policy.MaxPerWindow {
		next := state
		next.count++
		return next, resultFor(next, policy, true)
	}
	return state, resultFor(state, policy, false)
}

func resultFor(state windowState, policy Policy, allowed bool) Result {
	remaining := policy.MaxPerWindow - state.count
	if remaining < 0 || !allowed {
		remaining = 0
	}
	return Result{
		Allowed:     allowed,
		Count:       state.count,
		Remaining:   remaining,
		WindowStart: state.start,
		Reset:       state.start.Add(policy.Window),
	}
}
