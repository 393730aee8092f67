package oplog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one record in an operation log.
type Entry struct {
	Kind   Kind     `json:"kind"`
	Depth  int      `json:"depth"`
	Params []string `json:"params,omitempty"`
}

// Message renders the entry's text without indentation.
func (e Entry) Message() string {
	return e.Kind.Format(e.Params)
}

// Log is an ordered, append-only record of what an operation did.
// Sub-operations build their own Log and hand it back to be merged.
type Log struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`

	entries []Entry
}

// New creates an empty log with a fresh id.
func New() *Log {
	return &Log{
		ID:      uuid.NewString(),
		Started: time.Now().UTC(),
	}
}

// Add appends one entry. Params are stringified with fmt.Sprint.
func (l *Log) Add(kind Kind, depth int, params ...any) {
	if depth < 0 {
		depth = 0
	}
	var ps []string
	if len(params) > 0 {
		ps = make([]string, len(params))
		for i, p := range params {
			ps[i] = fmt.Sprint(p)
		}
	}
	l.entries = append(l.entries, Entry{Kind: kind, Depth: depth, Params: ps})
}

// Merge appends every entry of sub with its depth shifted by depth.
// Relative order is preserved; a nil sub is a no-op.
func (l *Log) Merge(sub *Log, depth int) {
	if sub == nil || sub == l {
		return
	}
	if depth < 0 {
		depth = 0
	}
	for _, e := range sub.entries {
		e.Depth += depth
		e.Params = append([]string(nil), e.Params...)
		l.entries = append(l.entries, e)
	}
}

// Entries returns a copy of the entries in insertion order.
func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	if l.Len() == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Contains reports whether any entry has the given kind.
func (l *Log) Contains(kind Kind) bool {
	if l == nil {
		return false
	}
	for _, e := range l.entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Kinds returns the kinds of all entries, in order.
func (l *Log) Kinds() []Kind {
	if l == nil {
		return nil
	}
	out := make([]Kind, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Kind
	}
	return out
}

// Clone returns an independent copy of the log.
func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	c := &Log{ID: l.ID, Started: l.Started}
	c.entries = make([]Entry, len(l.entries))
	for i, e := range l.entries {
		e.Params = append([]string(nil), e.Params...)
		c.entries[i] = e
	}
	return c
}

type logJSON struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Entries []Entry   `json:"entries"`
}

// MarshalJSON writes the log including its entries.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(logJSON{ID: l.ID, Started: l.Started, Entries: l.entries})
}

// UnmarshalJSON restores a log written by MarshalJSON, so stored logs can be replayed.
func (l *Log) UnmarshalJSON(data []byte) error {
	var raw logJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.ID = raw.ID
	l.Started = raw.Started
	l.entries = raw.Entries
	return nil
}
