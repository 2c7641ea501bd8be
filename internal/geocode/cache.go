package geocode

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// DefaultPrecision is the number of decimals kept in cache keys (about 11 m).
const DefaultPrecision = 4

// Cache maps rounded coordinates to a place or to an explicit "no place".
type Cache struct {
	mu        sync.RWMutex
	filePath  string
	precision int
	entries   map[string]*types.Place
}

func NewCache(filePath string, precision int) *Cache {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Cache{
		filePath:  filePath,
		precision: precision,
		entries:   make(map[string]*types.Place),
	}
}

// LoadCache reads the cache at filePath. A missing file yields an empty cache.
func LoadCache(filePath string, precision int) (*Cache, error) {
	c := NewCache(filePath, precision)
	if filePath == "" {
		return c, nil
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read geocode cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse geocode cache %s: %w", filePath, err)
	}
	if c.entries == nil {
		c.entries = make(map[string]*types.Place)
	}
	return c, nil
}

// Key rounds coord to the cache precision, e.g. "37.5665,126.9780".
func (c *Cache) Key(coord types.Coordinate) string {
	return formatRounded(coord.Latitude, c.precision) + "," + formatRounded(coord.Longitude, c.precision)
}

func formatRounded(v float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // no "-0.0000" keys
	}
	return strconv.FormatFloat(r, 'f', precision, 64)
}

// Get returns the cached place for key. ok is false on a miss; a hit with a
// nil place means the coordinate is known to have no place.
func (c *Cache) Get(key string) (place *types.Place, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[key]
	if p == nil {
		return nil, ok
	}
	cp := *p
	return &cp, true
}

func (c *Cache) Put(key string, place *types.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if place == nil {
		c.entries[key] = nil
		return
	}
	cp := *place
	c.entries[key] = &cp
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save merges the in-memory entries over whatever is on disk and rewrites
// the file atomically.
func (c *Cache) Save() error {
	if c.filePath == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if onDisk, err := LoadCache(c.filePath, c.precision); err == nil {
		for key, place := range onDisk.entries {
			if _, ok := c.entries[key]; !ok {
				c.entries[key] = place
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.filePath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
