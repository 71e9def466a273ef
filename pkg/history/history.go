// Package history records the transitions committed by a state machine instance.
package history

import "github.com/aretw0/arbor/pkg/domain"

// DefaultLimit is the retention used when none is configured.
const DefaultLimit = 64

// Log is an append-only list of transitions, oldest first.
// When Limit is positive the oldest records are dropped to keep at most Limit.
// A zero Limit keeps everything.
type Log struct {
	Entries []domain.HistoryRecord `json:"entries"`
	Limit   int                    `json:"limit"`
}

// New creates an empty log with the given retention.
func New(limit int) *Log {
	if limit < 0 {
		limit = 0
	}
	return &Log{Entries: []domain.HistoryRecord{}, Limit: limit}
}

// Record appends a transition.
func (l *Log) Record(from, to domain.StateID, tick uint64) {
	l.Entries = append(l.Entries, domain.HistoryRecord{From: from, To: to, Tick: tick})
	if l.Limit > 0 && len(l.Entries) > l.Limit {
		drop := len(l.Entries) - l.Limit
		l.Entries = append(l.Entries[:0:0], l.Entries[drop:]...)
	}
}

// Records returns a copy of the entries, oldest first.
func (l *Log) Records() []domain.HistoryRecord {
	if l == nil {
		return []domain.HistoryRecord{}
	}
	return append([]domain.HistoryRecord{}, l.Entries...)
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Last returns the most recent record.
func (l *Log) Last() (domain.HistoryRecord, bool) {
	if l.Len() == 0 {
		return domain.HistoryRecord{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}

// Clone returns a deep copy.
func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	return &Log{Entries: l.Records(), Limit: l.Limit}
}

// MostRecentUnder scans from the newest record backwards and returns the To
// of the first record that sits strictly below ancestor and is not skipped.
// lineage returns the ancestors of a state, closest first.
func MostRecentUnder(l *Log, lineage func(domain.StateID) []domain.StateID, ancestor domain.StateID, skip func(domain.StateID) bool) (domain.StateID, bool) {
	for i := l.Len() - 1; i >= 0; i-- {
		to := l.Entries[i].To
		if to == "" || (skip != nil && skip(to)) {
			continue
		}
		for _, a := range lineage(to) {
			if a == ancestor {
				return to, true
			}
		}
	}
	return "", false
}
