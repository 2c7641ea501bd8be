package metadata

import (
	"fmt"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// TZLocator maps a coordinate to the time zone in force there.
type TZLocator interface {
	Location(coord types.Coordinate) *time.Location
}

// tzfLocator looks zones up in the polygon data embedded in tzf.
type tzfLocator struct {
	finder tzf.F

	mu    sync.Mutex
	cache map[string]*time.Location
}

func NewTZLocator() (TZLocator, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load time zone finder: %w", err)
	}
	return &tzfLocator{finder: finder, cache: make(map[string]*time.Location)}, nil
}

func (l *tzfLocator) Location(coord types.Coordinate) *time.Location {
	name := l.finder.GetTimezoneName(coord.Longitude, coord.Latitude)
	if name == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if loc, ok := l.cache[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = nil
	}
	l.cache[name] = loc
	return loc
}
