package boundary

import (
	"encoding/json"
	"errors"
)

// DefaultMaxRetries is the retry budget when none is configured.
const DefaultMaxRetries = 3

// StateKey is the session key holding the boundary state.
const StateKey = "boundary"

var (
	// ErrNotFailed is returned by Retry while the boundary is stable.
	ErrNotFailed = errors.New("boundary: nothing to retry")
	// ErrRetriesExhausted is returned by Retry once the budget is spent.
	ErrRetriesExhausted = errors.New("boundary: no retry attempts left")
)

// State of the boundary.
type State int

const (
	Stable State = iota
	Failed
)

func (s State) String() string {
	if s == Failed {
		return "failed"
	}
	return "stable"
}

// Machine tracks whether the UI is in a failed state and how many retries
// remain. Retries spent stay spent until Reset.
type Machine struct {
	failed bool
	used   int
	max    int
}

// NewMachine returns a stable machine with maxRetries attempts.
func NewMachine(maxRetries int) Machine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Machine{max: maxRetries}
}

// State returns the current state.
func (m Machine) State() State {
	if m.failed {
		return Failed
	}
	return Stable
}

// AttemptsLeft returns the remaining retry budget.
func (m Machine) AttemptsLeft() int {
	if left := m.max - m.used; left > 0 {
		return left
	}
	return 0
}

// CanRetry reports whether Retry would succeed.
func (m Machine) CanRetry() bool {
	return m.failed && m.AttemptsLeft() > 0
}

// Fail moves to Failed keeping the remaining budget.
func (m *Machine) Fail() {
	m.failed = true
}

// Retry spends one attempt and returns to Stable.
func (m *Machine) Retry() error {
	if !m.failed {
		return ErrNotFailed
	}
	if m.AttemptsLeft() == 0 {
		return ErrRetriesExhausted
	}
	m.used++
	m.failed = false
	return nil
}

// Reset returns to Stable with the full budget.
func (m *Machine) Reset() {
	m.failed = false
	m.used = 0
}

// Storage persists machine state between requests.
type Storage interface {
	Get(key string) string
	Set(key, value string)
}

type persisted struct {
	Failed bool `json:"failed"`
	Used   int  `json:"used"`
}

// Load restores the machine kept in storage. Missing or unreadable state
// yields a stable machine.
func Load(storage Storage, maxRetries int) Machine {
	m := NewMachine(maxRetries)
	if storage == nil {
		return m
	}
	raw := storage.Get(StateKey)
	if raw == "" {
		return m
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return m
	}
	m.failed = p.Failed
	if p.Used > 0 {
		m.used = p.Used
	}
	return m
}

// Save writes the machine to storage.
func (m Machine) Save(storage Storage) {
	if storage == nil {
		return
	}
	raw, _ := json.Marshal(persisted{Failed: m.failed, Used: m.used})
	storage.Set(StateKey, string(raw))
}
