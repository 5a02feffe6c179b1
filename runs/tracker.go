// Package runs tracks the lifecycle of fire-and-forget pipeline executions,
// one state machine per pipeline name: idle -> running -> success or error,
// back to idle on reset.
package runs

import "time"

// Status of one tracked execution.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the outcome of one execution. Success decides whether Complete
// lands in success or error state.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Metadata map[string]any
}

// State is the recorded lifecycle of one key. The zero value is the idle
// default returned for unknown keys.
type State struct {
	Status      Status
	Result      *Result
	Message     string
	StartedAt   time.Time
	CompletedAt time.Time

	// LastInput is the most recent input passed to Start. It survives
	// Reset so a re-run can reuse it.
	LastInput string
}

// Tracker keeps fully independent execution states per key. Methods are not
// goroutine safe; like the transcript, all mutation happens on the event
// loop.
type Tracker struct {
	states map[string]State
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]State)}
}

// Get returns the state for key. Unknown keys read as the idle default;
// looking one up never creates an entry.
func (t *Tracker) Get(key string) State {
	st, ok := t.states[key]
	if !ok {
		return State{Status: StatusIdle}
	}
	return st
}

// Start marks key as running and remembers input for retry. A start while
// already running restarts the clock; the previous result is discarded.
func (t *Tracker) Start(key, input string) {
	st := t.Get(key)
	st.Status = StatusRunning
	st.Result = nil
	st.Message = ""
	st.StartedAt = time.Now()
	st.CompletedAt = time.Time{}
	if input != "" || st.LastInput == "" {
		st.LastInput = input
	}
	t.states[key] = st
}

// Complete records the result; the embedded success flag picks the terminal
// state. Completing a key that is not running still records the result -
// the run finished, whatever we thought it was doing.
func (t *Tracker) Complete(key string, result Result) {
	st := t.Get(key)
	if result.Success {
		st.Status = StatusSuccess
	} else {
		st.Status = StatusError
		st.Message = result.Error
	}
	r := result
	st.Result = &r
	st.CompletedAt = time.Now()
	t.states[key] = st
}

// Fail records an error that prevented the run from producing a result.
func (t *Tracker) Fail(key, message string) {
	st := t.Get(key)
	st.Status = StatusError
	st.Result = nil
	st.Message = message
	st.CompletedAt = time.Now()
	t.states[key] = st
}

// Reset returns key to idle, clearing the result and message but preserving
// LastInput.
func (t *Tracker) Reset(key string) {
	st, ok := t.states[key]
	if !ok {
		return
	}
	t.states[key] = State{Status: StatusIdle, LastInput: st.LastInput}
}
