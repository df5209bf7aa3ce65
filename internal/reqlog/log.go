package reqlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/e2remote/e2remote/internal/notify"
)

// DefaultCapacity is the number of entries kept when New is given a
// non-positive capacity.
const DefaultCapacity = 200

// Kind tags an entry with the operation that issued it.
type Kind string

const (
	KindProbe   Kind = "probe"
	KindCommand Kind = "command"
	KindPower   Kind = "power"
	KindPreview Kind = "preview"
)

// Entry is a single request/response pair.
type Entry struct {
	ID        uint64
	Kind      Kind
	Timestamp time.Time
	URL       string

	// StatusCode is zero until a response arrives, and stays zero when the
	// request failed before receiving one.
	StatusCode int

	// Summary is a short description of the response body or failure.
	Summary string

	Completed bool
	Duration  time.Duration
}

// Pending reports whether the request has not completed yet.
func (e Entry) Pending() bool {
	return !e.Completed
}

// String renders the entry on one line for terminal output.
func (e Entry) String() string {
	status := "..."
	if e.Completed {
		if e.StatusCode != 0 {
			status = fmt.Sprintf("%d", e.StatusCode)
		} else {
			status = "ERR"
		}
	}
	line := fmt.Sprintf("%s %-7s %s %s", e.Timestamp.Format("15:04:05.000"), e.Kind, status, e.URL)
	if e.Summary != "" {
		line += " - " + e.Summary
	}
	return line
}

// Outcome describes how a request finished.
type Outcome struct {
	StatusCode int
	Summary    string
}

// Filter selects entries returned by Entries.
type Filter struct {
	// HidePreview drops screen-grab requests, which otherwise dominate the
	// log while a preview is running.
	HidePreview bool
}

func (f Filter) match(e Entry) bool {
	if f.HidePreview && e.Kind == KindPreview {
		return false
	}
	return true
}

// Log is a fixed-size FIFO of entries. It is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Entry // ring storage
	start    int     // index of oldest entry
	count    int
	nextID   uint64
	capacity int

	now     func() time.Time
	updates *notify.Hub[Entry]
}

// New creates a log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		nextID:   1,
		now:      time.Now,
		updates:  notify.NewHub[Entry](),
	}
}

// Capacity returns the maximum number of entries kept.
func (l *Log) Capacity() int {
	return l.capacity
}

// Begin records a request about to be issued and returns its ID.
func (l *Log) Begin(kind Kind, url string) uint64 {
	l.mu.Lock()
	e := Entry{
		ID:        l.nextID,
		Kind:      kind,
		Timestamp: l.now(),
		URL:       url,
	}
	l.nextID++

	if l.count < l.capacity {
		l.entries[(l.start+l.count)%l.capacity] = e
		l.count++
	} else {
		// overwrite the oldest
		l.entries[l.start] = e
		l.start = (l.start + 1) % l.capacity
	}
	l.updates.Publish(e)
	l.mu.Unlock()
	return e.ID
}

// Complete records the outcome of the request with the given ID. Completing
// an entry that has already been evicted is a no-op.
func (l *Log) Complete(id uint64, out Outcome) {
	l.mu.Lock()
	idx, ok := l.indexOf(id)
	if !ok {
		l.mu.Unlock()
		return
	}
	e := &l.entries[idx]
	e.StatusCode = out.StatusCode
	e.Summary = out.Summary
	e.Completed = true
	e.Duration = l.now().Sub(e.Timestamp)
	l.updates.Publish(*e)
	l.mu.Unlock()
}

// indexOf locates id in the ring. IDs are assigned monotonically so the
// position follows from the distance to the oldest entry.
func (l *Log) indexOf(id uint64) (int, bool) {
	if l.count == 0 {
		return 0, false
	}
	oldest := l.entries[l.start].ID
	if id < oldest || id >= oldest+uint64(l.count) {
		return 0, false
	}
	return (l.start + int(id-oldest)) % l.capacity, true
}

// Get returns the entry with the given ID if it is still in the buffer.
func (l *Log) Get(id uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.indexOf(id)
	if !ok {
		return Entry{}, false
	}
	return l.entries[idx], true
}

// Entries returns a copy of the buffered entries, oldest first.
func (l *Log) Entries(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.count)
	for i := 0; i < l.count; i++ {
		e := l.entries[(l.start+i)%l.capacity]
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Clear drops all entries. IDs keep increasing across a Clear.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = 0
	l.count = 0
}

// Subscribe returns a channel receiving every new and completed entry.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	return l.updates.Subscribe(buffer)
}
