// Package aggregate accumulates resolved places per bucket, per year and
// globally, and ranks them.
package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// Observation is one filed asset's place, as persisted in places.json.
type Observation struct {
	Bucket string      `json:"bucket"`
	Year   int         `json:"year,omitempty"`
	Place  types.Place `json:"place"`
}

// tally counts places and remembers the order they were first seen in.
type tally struct {
	order  []types.Place
	counts map[types.Place]int
}

func newTally() *tally {
	return &tally{counts: make(map[types.Place]int)}
}

func (t *tally) add(p types.Place) {
	if _, ok := t.counts[p]; !ok {
		t.order = append(t.order, p)
	}
	t.counts[p]++
}

// ranked sorts by descending count; ties keep discovery order.
func (t *tally) ranked() []types.PlaceCount {
	out := make([]types.PlaceCount, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, types.PlaceCount{Place: p, Count: t.counts[p]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

type Aggregator struct {
	mu           sync.Mutex
	observations []Observation
	buckets      map[string]*tally
	years        map[int]*tally
	global       *tally
}

func New() *Aggregator {
	return &Aggregator{
		buckets: make(map[string]*tally),
		years:   make(map[int]*tally),
		global:  newTally(),
	}
}

// Load replays the observations stored at path. A missing file yields an
// empty aggregator.
func Load(path string) (*Aggregator, error) {
	a := New()
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read places: %w", err)
	}
	if len(data) == 0 {
		return a, nil
	}

	var obs []Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("parse places %s: %w", path, err)
	}
	for _, o := range obs {
		a.add(o)
	}
	return a, nil
}

func (a *Aggregator) Record(bucket types.Bucket, place types.Place) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.add(Observation{Bucket: bucket.Rel, Year: bucket.Year, Place: place})
}

func (a *Aggregator) add(o Observation) {
	a.observations = append(a.observations, o)

	bt, ok := a.buckets[o.Bucket]
	if !ok {
		bt = newTally()
		a.buckets[o.Bucket] = bt
	}
	bt.add(o.Place)

	if o.Year != 0 {
		yt, ok := a.years[o.Year]
		if !ok {
			yt = newTally()
			a.years[o.Year] = yt
		}
		yt.add(o.Place)
	}

	a.global.add(o.Place)
}

// Places returns the distinct places seen in bucket, in discovery order.
func (a *Aggregator) Places(bucket string) []types.Place {
	a.mu.Lock()
	defer a.mu.Unlock()

	bt, ok := a.buckets[bucket]
	if !ok {
		return nil
	}
	return append([]types.Place(nil), bt.order...)
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.observations)
}

type BucketSummary struct {
	Bucket  string
	Primary types.Place
	Places  []types.PlaceCount
}

type YearSummary struct {
	Year   int
	Places []types.PlaceCount
}

// Summary holds every ranking. Years ascend; buckets sort by path, which for
// date buckets is chronological.
type Summary struct {
	Global  []types.PlaceCount
	Years   []YearSummary
	Buckets []BucketSummary
}

func (a *Aggregator) Summarize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{Global: a.global.ranked()}

	years := make([]int, 0, len(a.years))
	for y := range a.years {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		s.Years = append(s.Years, YearSummary{Year: y, Places: a.years[y].ranked()})
	}

	buckets := make([]string, 0, len(a.buckets))
	for b := range a.buckets {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	for _, b := range buckets {
		ranked := a.buckets[b].ranked()
		s.Buckets = append(s.Buckets, BucketSummary{Bucket: b, Primary: ranked[0].Place, Places: ranked})
	}

	return s
}

// Save writes every observation to path atomically.
func (a *Aggregator) Save(path string) error {
	a.mu.Lock()
	obs := append([]Observation{}, a.observations...)
	a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
