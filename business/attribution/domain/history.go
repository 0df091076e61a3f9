// Package domain contains outcome history, attribution tables and the
// terminal-event model.
package domain

import (
	"strings"
	"time"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Method is an attribution method.
type Method string

const (
	MethodStatistical Method = "statistical"
	MethodPattern     Method = "pattern"
	MethodCorrelation Method = "correlation"
)

// Entry is the historical adjustment of one (kind, venue) key.
type Entry struct {
	Adjustment float64            // in [-1,1]; positive means riskier than the model expects
	Samples    int
	Methods    map[Method]float64 // contribution of each method that had enough data
}

// HistoryTable is an immutable lookup from (kind, venue) to adjustment.
// The attributor publishes a fresh table; readers never see partial updates.
type HistoryTable struct {
	entries map[string]Entry
	builtAt time.Time
}

// NewHistoryTable copies entries into a table.
func NewHistoryTable(entries map[string]Entry, builtAt time.Time) *HistoryTable {
	cp := make(map[string]Entry, len(entries))
	for k, e := range entries {
		cp[k] = e
	}
	return &HistoryTable{entries: cp, builtAt: builtAt}
}

// EmptyHistory returns a table with no entries.
func EmptyHistory() *HistoryTable {
	return NewHistoryTable(nil, time.Time{})
}

// Key builds the table key for kind and venue.
func Key(kind oppdomain.Kind, venue string) string {
	return string(kind) + "|" + strings.ToLower(venue)
}

// Lookup returns the entry for kind and venue. Nil tables are empty.
func (t *HistoryTable) Lookup(kind oppdomain.Kind, venue string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[Key(kind, venue)]
	return e, ok
}

// Len returns the number of keys.
func (t *HistoryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// BuiltAt is when the table was computed.
func (t *HistoryTable) BuiltAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.builtAt
}
