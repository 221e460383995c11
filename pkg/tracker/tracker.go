package tracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/walletmesh/pkg/log"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the tracker logger.
func WithLogger(l log.Logger) Option {
	return func(t *Tracker) { t.logger = log.With(l, log.String("component", "tracker")) }
}

// SessionLookup reports whether a session can still own transactions.
type SessionLookup interface {
	Live(sessionID string) bool
}

// Tracker stores transaction records keyed by record id.
type Tracker struct {
	mu       sync.RWMutex
	records  map[string]*Record
	sessions SessionLookup

	subMu sync.RWMutex
	subs  map[uint64]func(Record)
	subID uint64

	now    func() time.Time
	logger log.Logger
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		subs:    make(map[uint64]func(Record)),
		now:     time.Now,
		logger:  log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers fn to receive a snapshot after every change.
func (t *Tracker) Subscribe(fn func(Record)) func() {
	t.subMu.Lock()
	t.subID++
	id := t.subID
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) notify(recs ...Record) {
	t.subMu.RLock()
	fns := make([]func(Record), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.RUnlock()

	for _, r := range recs {
		for _, fn := range fns {
			fn(r)
		}
	}
}

// SetSessionLookup binds the tracker to the owner of session ids. Records
// started for a session the lookup no longer reports live are failed on
// the spot.
func (t *Tracker) SetSessionLookup(l SessionLookup) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = l
}

// Start begins tracking recordID, optionally bound to sessionID. A record
// bound to an ended session is stored already failed; Start still returns
// nil so the caller can read the outcome through Get.
func (t *Tracker) Start(recordID, sessionID string) error {
	t.mu.Lock()
	if _, exists := t.records[recordID]; exists {
		t.mu.Unlock()
		return ErrRecordExists
	}
	now := t.now()
	rec := &Record{
		ID:        recordID,
		SessionID: sessionID,
		Status:    StatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Checked under t.mu: a session ending after this point fails the
	// record through FailAllForSession, which waits for the lock.
	ended := sessionID != "" && t.sessions != nil && !t.sessions.Live(sessionID)
	if ended {
		applyStatus(rec, StatusFailed, ReasonSessionEnded, now)
	}
	t.records[recordID] = rec
	snap := snapshot(rec)
	t.mu.Unlock()

	if ended {
		t.logger.Warn("transaction started for ended session",
			log.String("record_id", recordID),
			log.SessionID(sessionID),
		)
	}
	t.notify(snap)
	return nil
}

// StartStage records the start of a stage. Unknown or finished records are ignored.
func (t *Tracker) StartStage(recordID, stage string) {
	t.mutate(recordID, func(rec *Record, now time.Time) bool {
		if rec.Status.Terminal() {
			return false
		}
		for i := range rec.Stages {
			if rec.Stages[i].Name == stage {
				if !rec.Stages[i].End.IsZero() || rec.Stages[i].Start.IsZero() {
					rec.Stages[i].Start = now
					rec.Stages[i].End = time.Time{}
					return true
				}
				return false
			}
		}
		rec.Stages = append(rec.Stages, Stage{Name: stage, Start: now})
		return true
	})
}

// EndStage records the end of a stage, even one that was never started.
// Unknown records are ignored.
func (t *Tracker) EndStage(recordID, stage string) {
	t.mutate(recordID, func(rec *Record, now time.Time) bool {
		for i := range rec.Stages {
			if rec.Stages[i].Name == stage {
				end := now
				if end.Before(rec.Stages[i].Start) {
					end = rec.Stages[i].Start
				}
				rec.Stages[i].End = end
				return true
			}
		}
		rec.Stages = append(rec.Stages, Stage{Name: stage, End: now})
		return true
	})
}

// SetStatus advances a record. Calls after a terminal status are ignored;
// backward moves return ErrInvalidTransition.
func (t *Tracker) SetStatus(recordID string, status Status) error {
	return t.setStatus(recordID, status, "")
}

// Fail moves a record to failed with reason.
func (t *Tracker) Fail(recordID, reason string) error {
	return t.setStatus(recordID, StatusFailed, reason)
}

func (t *Tracker) setStatus(recordID string, status Status, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	t.mu.Lock()
	rec, ok := t.records[recordID]
	if !ok {
		t.mu.Unlock()
		return ErrRecordNotFound
	}
	if rec.Status.Terminal() {
		t.mu.Unlock()
		t.logger.Debug("ignoring status after terminal state",
			log.String("record_id", recordID),
			log.String("status", string(status)),
		)
		return nil
	}
	if rec.Status == status {
		t.mu.Unlock()
		return nil
	}
	if !rec.Status.canAdvanceTo(status) {
		from := rec.Status
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	now := t.now()
	applyStatus(rec, status, reason, now)
	snap := snapshot(rec)
	t.mu.Unlock()

	t.notify(snap)
	return nil
}

func applyStatus(rec *Record, status Status, reason string, now time.Time) {
	rec.Status = status
	rec.UpdatedAt = now
	if reason != "" {
		rec.Reason = reason
	}
	if status.Terminal() {
		rec.CompletedAt = now
		for i := range rec.Stages {
			if !rec.Stages[i].Start.IsZero() && rec.Stages[i].End.IsZero() {
				rec.Stages[i].End = now
			}
		}
	}
}

// MarkBackground flags a record as running in the background.
func (t *Tracker) MarkBackground(recordID string) {
	t.setBackground(recordID, true)
}

// UnmarkBackground clears the background flag.
func (t *Tracker) UnmarkBackground(recordID string) {
	t.setBackground(recordID, false)
}

func (t *Tracker) setBackground(recordID string, v bool) {
	t.mutate(recordID, func(rec *Record, _ time.Time) bool {
		if rec.Background == v {
			return false
		}
		rec.Background = v
		return true
	})
}

// FailAllForSession fails every non-terminal record bound to sessionID and
// returns how many were failed.
func (t *Tracker) FailAllForSession(sessionID, reason string) int {
	if sessionID == "" {
		return 0
	}
	t.mu.Lock()
	now := t.now()
	var snaps []Record
	for _, rec := range t.records {
		if rec.SessionID != sessionID || rec.Status.Terminal() {
			continue
		}
		applyStatus(rec, StatusFailed, reason, now)
		snaps = append(snaps, snapshot(rec))
	}
	t.mu.Unlock()

	if len(snaps) > 0 {
		t.logger.Info("failed transactions for ended session",
			log.SessionID(sessionID),
			log.Int("count", len(snaps)),
			log.String("reason", reason),
		)
	}
	t.notify(snaps...)
	return len(snaps)
}

// Get returns a snapshot of recordID.
func (t *Tracker) Get(recordID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[recordID]
	if !ok {
		return Record{}, false
	}
	return snapshot(rec), true
}

// ForSession returns the records bound to sessionID, oldest first.
func (t *Tracker) ForSession(sessionID string) []Record {
	t.mu.RLock()
	out := []Record{}
	for _, rec := range t.records {
		if rec.SessionID == sessionID {
			out = append(out, snapshot(rec))
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Clear stops tracking recordID and reports whether it existed.
func (t *Tracker) Clear(recordID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[recordID]
	delete(t.records, recordID)
	return ok
}

func (t *Tracker) mutate(recordID string, fn func(*Record, time.Time) bool) {
	t.mu.Lock()
	rec, ok := t.records[recordID]
	if !ok {
		t.mu.Unlock()
		return
	}
	now := t.now()
	if !fn(rec, now) {
		t.mu.Unlock()
		return
	}
	rec.UpdatedAt = now
	snap := snapshot(rec)
	t.mu.Unlock()

	t.notify(snap)
}

func snapshot(rec *Record) Record {
	out := *rec
	out.Stages = append([]Stage(nil), rec.Stages...)
	return out
}
