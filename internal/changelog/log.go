package changelog

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/common"
)

// Log is an ordered, append-mostly list of entries. It owns its entries;
// every accessor hands out copies.
//
// The zero value is an empty log using the wall clock. A Log is safe for
// concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// Option customizes a Log.
type Option func(*Log)

// WithClock sets the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New returns an empty log.
func New(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Log) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now().UTC()
}

// AddEntry records the current state of c.
//
// The entry type is decided from what the log already holds for c's id:
//   - nothing: Create if c is not synchronised yet, otherwise Update, since
//     a remote peer must not be told about an object it already has;
//   - something: Create while any of it is a Create that has not been
//     flushed, otherwise Update.
//
// A Create replaces every earlier entry for the id, so repeated logging of an
// unflushed object keeps a single Create carrying its latest state. Updates
// accumulate and are not compared against earlier content.
//
// On a marshal failure the log is left untouched and the error wraps
// common.ErrMarshalFailed.
func (l *Log) AddEntry(c Content) error {
	id := c.GetID()
	if id == "" {
		return common.ErrEmptyID
	}

	payload, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("%w: object %s: %w", common.ErrMarshalFailed, id, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t := Update
	candidates := l.countFor(id)
	switch {
	case candidates == 0 && !c.IsSynchronised():
		t = Create
	case candidates > 0 && l.hasCreate(id):
		t = Create
	}

	// TODO: store Update entries as a diff against the previous snapshot of
	// the same object instead of the whole payload.
	if t == Create {
		l.dropLineage(id)
	}

	l.entries = append(l.entries, Entry{Time: l.clock(), Type: t, ObjID: id, Data: payload})
	return nil
}

// AddDeletion records that c was removed.
//
// An object whose Create was never flushed has not left the device, so its
// whole lineage is dropped and nothing is recorded. An object the log has
// never seen and that is not synchronised is likewise unknown remotely.
// Otherwise earlier entries for the id are dropped and one Delete is
// appended.
func (l *Log) AddDeletion(c Content) error {
	id := c.GetID()
	if id == "" {
		return common.ErrEmptyID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	unannounced := l.hasCreate(id) || (l.countFor(id) == 0 && !c.IsSynchronised())
	l.dropLineage(id)
	if unannounced {
		return nil
	}

	l.entries = append(l.entries, Entry{Time: l.clock(), Type: Delete, ObjID: id})
	return nil
}

func (l *Log) countFor(id string) int {
	n := 0
	for _, e := range l.entries {
		if e.ObjID == id {
			n++
		}
	}
	return n
}

func (l *Log) hasCreate(id string) bool {
	return slices.ContainsFunc(l.entries, func(e Entry) bool {
		return e.ObjID == id && e.Type == Create
	})
}

func (l *Log) dropLineage(id string) {
	l.entries = slices.DeleteFunc(l.entries, func(e Entry) bool { return e.ObjID == id })
}

// Len is the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CountEntriesOf counts entries of type t.
func (l *Log) CountEntriesOf(t EntryType) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *Log) CountCreates() int { return l.CountEntriesOf(Create) }
func (l *Log) CountUpdates() int { return l.CountEntriesOf(Update) }
func (l *Log) CountDeletes() int { return l.CountEntriesOf(Delete) }

// Entries returns a copy of all entries in log order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// EntriesFor returns a copy of the entries for one object id, in log order.
func (l *Log) EntriesFor(id string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.ObjID == id {
			out = append(out, e)
		}
	}
	return out
}

// Drain removes and returns every entry, leaving the log empty. It is the
// flush step: once drained, Creates no longer hold their lineage open.
func (l *Log) Drain() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.entries
	l.entries = nil
	return out
}

// Restore puts entries back in front of the current ones, for example after
// a flush that failed to reach the remote. The combined list is coalesced as
// AddEntry would have done.
func (l *Log) Restore(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make([]Entry, 0, len(entries)+len(l.entries))
	merged = append(merged, entries...)
	merged = append(merged, l.entries...)
	l.entries = coalesce(merged)
}

// coalesce restores the rule that an id with a Create has a single entry: a
// Create carrying the newest state, at the position of the id's last entry.
// If that last entry is a Delete the object never left the device and its
// entries are dropped. Ids without a Create are kept as they are.
func coalesce(entries []Entry) []Entry {
	last := make(map[string]int)
	created := make(map[string]bool)
	for i, e := range entries {
		last[e.ObjID] = i
		if e.Type == Create {
			created[e.ObjID] = true
		}
	}

	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		switch {
		case !created[e.ObjID]:
			out = append(out, e)
		case i == last[e.ObjID] && e.Type != Delete:
			e.Type = Create
			out = append(out, e)
		}
	}
	return out
}

type logJSON struct {
	Entries []Entry `json:"entries"`
}

// MarshalJSON encodes the log as {"entries":[...]}.
func (l *Log) MarshalJSON() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(logJSON{Entries: entries})
}

// UnmarshalJSON replaces the log content. Unknown entry types are rejected;
// entries following a Create of the same id are folded into it.
func (l *Log) UnmarshalJSON(b []byte) error {
	var v logJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = coalesce(v.Entries)
	return nil
}
