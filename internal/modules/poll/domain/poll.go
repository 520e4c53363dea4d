package domain

import (
	"slices"
	"time"
)

// TrackerSize is how many recently seen post ids are remembered
const TrackerSize = 100

// Tracker is a bounded list of the most recently processed post ids
type Tracker struct {
	ids  []int64
	size int
}

// NewTracker creates a tracker holding at most size ids, seeded with ids
func NewTracker(size int, ids ...int64) *Tracker {
	if size <= 0 {
		size = TrackerSize
	}
	t := &Tracker{size: size}
	t.Append(ids...)
	return t
}

// Append adds ids, dropping the oldest ones beyond capacity
func (t *Tracker) Append(ids ...int64) {
	t.ids = append(t.ids, ids...)
	if len(t.ids) > t.size {
		t.ids = slices.Clone(t.ids[len(t.ids)-t.size:])
	}
}

func (t *Tracker) Contains(id int64) bool {
	return slices.Contains(t.ids, id)
}

// IDs returns a copy of the tracked ids, oldest first
func (t *Tracker) IDs() []int64 {
	return slices.Clone(t.ids)
}

func (t *Tracker) Len() int {
	return len(t.ids)
}

// Cursor is the last processed post id. It only moves forward.
type Cursor struct {
	LastPostID int64
}

// Advance moves the cursor to id if id is newer
func (c *Cursor) Advance(id int64) bool {
	if id <= c.LastPostID {
		return false
	}
	c.LastPostID = id
	return true
}

// Seen reports whether id is at or behind the cursor
func (c Cursor) Seen(id int64) bool {
	return id <= c.LastPostID
}

// Mode is how new posts are discovered
type Mode string

const (
	// ModeNumeric walks every id after the cursor, oldest first
	ModeNumeric Mode = "numeric"
	// ModeSearch walks the newest results of a tag search
	ModeSearch Mode = "search"
)

// Result summarizes one refresh cycle
type Result struct {
	Processed int
	Delivered int
	Failed    int
	Cancelled bool
}

// Status is a snapshot of the poller for operators
type Status struct {
	Mode        Mode
	Running     bool
	Scheduled   bool
	LastPostID  int64
	Tracked     int
	LastRefresh time.Time
	LastResult  Result
}
