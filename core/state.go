package core

import "time"

// RunState is the mutable conversation state threaded through one run of the
// orchestration loop. It owns the ordered history, the name of the currently
// active agent, the turn counter and accumulated usage.
//
// Contract:
//   - Mutated exclusively by the Runner; never shared across concurrent runs
//     (one RunState per invocation), so no internal locking is required.
//   - History is append-only within a run; History returns a defensive copy.
//   - Turn count is monotonically non-decreasing.
type RunState struct {
	runID       string
	history     []Item
	activeAgent string
	turns       int
	usage       Usage
	started     time.Time
}

// NewRunState creates the state for a fresh run starting at the named agent.
func NewRunState(runID, agent string) *RunState {
	return &RunState{runID: runID, activeAgent: agent, started: time.Now().UTC()}
}

// RunID returns the unique identifier of the run.
func (s *RunState) RunID() string { return s.runID }

// ActiveAgent returns the name of the agent currently in control.
func (s *RunState) ActiveAgent() string { return s.activeAgent }

// SetActiveAgent installs a new active agent after a hand-off.
func (s *RunState) SetActiveAgent(name string) { s.activeAgent = name }

// Turns returns the number of completed model turns.
func (s *RunState) Turns() int { return s.turns }

// IncrementTurn bumps the turn counter after a model call completed.
func (s *RunState) IncrementTurn() { s.turns++ }

// AppendItem appends an item to the history.
func (s *RunState) AppendItem(it Item) { s.history = append(s.history, it) }

// History returns a defensive copy of the ordered history so callers cannot
// perform retroactive edits.
func (s *RunState) History() []Item {
	out := make([]Item, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of history items.
func (s *RunState) Len() int { return len(s.history) }

// LastItem returns the most recent history item, if any.
func (s *RunState) LastItem() (Item, bool) {
	if len(s.history) == 0 {
		return Item{}, false
	}
	return s.history[len(s.history)-1], true
}

// AddUsage accumulates token usage from one model call.
func (s *RunState) AddUsage(u Usage) { s.usage.Add(u) }

// Usage returns the usage accumulated so far.
func (s *RunState) Usage() Usage { return s.usage }

// Started returns the UTC time the run state was created.
func (s *RunState) Started() time.Time { return s.started }
