package tracker

import (
	"errors"
	"time"
)

// Tracker errors.
var (
	ErrRecordNotFound    = errors.New("tracker: record not found")
	ErrRecordExists      = errors.New("tracker: record already exists")
	ErrInvalidStatus     = errors.New("tracker: unknown status")
	ErrInvalidTransition = errors.New("tracker: status cannot move backwards")
)

// ReasonSessionEnded is the failure reason for records started after their
// session ended.
const ReasonSessionEnded = "session ended"

// Status is the lifecycle status of a tracked operation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInitiated  Status = "initiated"
	StatusSimulating Status = "simulating"
	StatusProving    Status = "proving"
	StatusSending    Status = "sending"
	StatusPending    Status = "pending"
	StatusConfirming Status = "confirming"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusIdle:       0,
	StatusInitiated:  1,
	StatusSimulating: 2,
	StatusProving:    3,
	StatusSending:    4,
	StatusPending:    5,
	StatusConfirming: 6,
	StatusConfirmed:  7,
	StatusFailed:     8,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is confirmed or failed.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// canAdvanceTo reports whether s -> next moves forward. Phases may be
// skipped (EVM transactions never prove); failed is reachable from any
// non-terminal status.
func (s Status) canAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Stage is one named phase with its timestamps. A zero Start means the
// stage was ended without being started.
type Stage struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Duration returns the stage duration when both timestamps are known.
func (s Stage) Duration() (time.Duration, bool) {
	if s.Start.IsZero() || s.End.IsZero() {
		return 0, false
	}
	return s.End.Sub(s.Start), true
}

// Record is a snapshot of one tracked operation.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	Status      Status    `json:"status"`
	Stages      []Stage   `json:"stages"`
	Background  bool      `json:"background"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// Stage returns the named stage.
func (r Record) Stage(name string) (Stage, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}
