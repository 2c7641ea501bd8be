// Package anomaly accumulates categorized exceptional events for operator review.
package anomaly

import (
	"sort"
	"sync"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// Log is an append-only, set-deduplicated collection of anomaly records.
type Log struct {
	mu      sync.Mutex
	entries map[types.AnomalyCategory]map[string]struct{}
}

func New() *Log {
	return &Log{entries: make(map[types.AnomalyCategory]map[string]struct{})}
}

func (l *Log) Record(category types.AnomalyCategory, path, detail string) {
	l.Add(types.AnomalyRecord{Category: category, Path: path, Detail: detail})
}

func (l *Log) Add(records ...types.AnomalyRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range records {
		set, ok := l.entries[r.Category]
		if !ok {
			set = make(map[string]struct{})
			l.entries[r.Category] = set
		}
		set[r.Line()] = struct{}{}
	}
}

// Entries returns the distinct lines recorded under category, sorted.
func (l *Log) Entries(category types.AnomalyCategory) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := l.entries[category]
	lines := make([]string, 0, len(set))
	for line := range set {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

func (l *Log) Count(category types.AnomalyCategory) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries[category])
}

// Total is the number of distinct lines across all categories.
func (l *Log) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, set := range l.entries {
		n += len(set)
	}
	return n
}
