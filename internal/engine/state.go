// Package engine holds the cross-tick alert state of the monitor. Every
// entity guards itself with its own mutex so checks, the day reset and the
// admin API can touch it from different goroutines.
package engine

import (
	"sync"
	"time"

	"github.com/hamed0406/ingestwatch/internal/domain"
)

// Cursor is the last-seen source id watermark. Unset until bootstrapped.
type Cursor struct {
	mu  sync.Mutex
	id  int64
	set bool
}

// Get returns the current id and whether the cursor has been bootstrapped.
func (c *Cursor) Get() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.set
}

// Bootstrap sets the cursor if it is still unset and reports whether it did.
func (c *Cursor) Bootstrap(maxID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return false
	}
	if maxID < 0 {
		maxID = 0
	}
	c.id, c.set = maxID, true
	return true
}

// Advance moves the cursor to id when that is ahead of it and returns the
// previous and current values. The cursor never moves backwards.
func (c *Cursor) Advance(id int64) (prev, cur int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.id
	if !c.set || id > c.id {
		c.id, c.set = id, true
	}
	return prev, c.id
}

// Watermark is the last time recent ingestion activity was observed.
type Watermark struct {
	mu   sync.Mutex
	last time.Time
}

func NewWatermark(at time.Time) *Watermark {
	return &Watermark{last: at}
}

func (w *Watermark) Last() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Touch records activity at now. A timestamp older than the current
// watermark is ignored.
func (w *Watermark) Touch(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.After(w.last) {
		w.last = now
	}
}

// Set replaces the watermark. It is used once at startup when the newest
// activity timestamp is read from the store; a future timestamp is clamped
// to now.
func (w *Watermark) Set(at, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if at.After(now) {
		at = now
	}
	w.last = at
}

// ElapsedHours is the number of whole hours between the watermark and now.
func (w *Watermark) ElapsedHours(now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := now.Sub(w.last)
	if d < 0 {
		return 0
	}
	return int64(d / time.Hour)
}

// Ladder tracks the highest failure level already reported today.
type Ladder struct {
	mu      sync.Mutex
	highest domain.Level
}

func (l *Ladder) Highest() domain.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highest
}

// Escalate records level if it is strictly above the highest level reported
// so far. It returns the previous level and whether an alert is due.
func (l *Ladder) Escalate(level domain.Level) (prev domain.Level, escalated bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev = l.highest
	if level <= l.highest {
		return prev, false
	}
	l.highest = level
	return prev, true
}

func (l *Ladder) reset() {
	l.mu.Lock()
	l.highest = domain.LevelNone
	l.mu.Unlock()
}

// Budget caps the number of alerts a check may send per day.
type Budget struct {
	mu    sync.Mutex
	count int
	limit int
}

func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count >= b.limit
}

// Spend consumes one unit and returns the new count.
func (b *Budget) Spend() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return b.count
}

func (b *Budget) Count() (count, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count, b.limit
}

func (b *Budget) reset() {
	b.mu.Lock()
	b.count = 0
	b.mu.Unlock()
}

// State is the complete engine state. One instance is owned by the monitor
// for the lifetime of the process.
type State struct {
	Cursor    *Cursor
	Watermark *Watermark
	Ladder    *Ladder
	PortAlarm *Budget

	mu        sync.Mutex
	lastReset time.Time
}

// NewState returns a fresh state with the watermark at startedAt.
func NewState(startedAt time.Time, portAlarmLimit int) *State {
	return &State{
		Cursor:    &Cursor{},
		Watermark: NewWatermark(startedAt),
		Ladder:    &Ladder{},
		PortAlarm: NewBudget(portAlarmLimit),
	}
}

// ResetDaily zeroes the ladder and the port alarm budget. Cursor and
// watermark are not daily and are left alone.
func (s *State) ResetDaily(now time.Time) (prevLevel domain.Level, prevAlarms int) {
	prevLevel = s.Ladder.Highest()
	prevAlarms, _ = s.PortAlarm.Count()
	s.Ladder.reset()
	s.PortAlarm.reset()
	s.mu.Lock()
	s.lastReset = now
	s.mu.Unlock()
	return prevLevel, prevAlarms
}

func (s *State) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		LastActivity: s.Watermark.Last(),
		HighestLevel: s.Ladder.Highest(),
	}
	if id, ok := s.Cursor.Get(); ok {
		snap.Cursor = &id
	}
	snap.PortAlarmsToday, snap.PortAlarmLimit = s.PortAlarm.Count()
	s.mu.Lock()
	snap.LastReset = s.lastReset
	s.mu.Unlock()
	return snap
}
