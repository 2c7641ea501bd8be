package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// DefaultSidecarSuffixes are appended to an asset path to find its Takeout descriptor.
var DefaultSidecarSuffixes = []string{".json", ".supplemental-metadata.json"}

// takeoutSidecar is the subset of a Takeout JSON descriptor we read.
type takeoutSidecar struct {
	PhotoTakenTime struct {
		Timestamp epochSeconds `json:"timestamp"`
	} `json:"photoTakenTime"`
	GeoData     sidecarGeo `json:"geoData"`
	GeoDataExif sidecarGeo `json:"geoDataExif"`
}

type sidecarGeo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (g sidecarGeo) coordinate() *types.Coordinate {
	if g.Latitude == 0 && g.Longitude == 0 {
		return nil
	}
	return &types.Coordinate{Latitude: g.Latitude, Longitude: g.Longitude}
}

// epochSeconds accepts both "1600000000" and 1600000000.
type epochSeconds struct {
	set   bool
	value int64
}

func (e *epochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %q", s)
	}
	e.set = true
	e.value = v
	return nil
}

// SidecarSource reads Takeout JSON descriptors stored next to the asset.
type SidecarSource struct {
	suffixes []string
	zones    TZLocator
}

// NewSidecarSource returns a source trying each suffix in order. zones may be
// nil, in which case timestamps are shown in the process local zone.
func NewSidecarSource(suffixes []string, zones TZLocator) *SidecarSource {
	if len(suffixes) == 0 {
		suffixes = DefaultSidecarSuffixes
	}
	return &SidecarSource{suffixes: suffixes, zones: zones}
}

func (s *SidecarSource) Name() string { return "Sidecar" }

func (s *SidecarSource) Resolve(_ context.Context, asset types.Asset) Finding {
	var out Finding

	for _, suffix := range s.suffixes {
		jsonPath := asset.Path + suffix
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			continue
		}

		displayPath := asset.DisplayPath() + suffix

		var meta takeoutSidecar
		if err := json.Unmarshal(data, &meta); err != nil {
			out.Anomalies = append(out.Anomalies,
				anomaly(types.AnomalyCorruptedMetadata, displayPath, err.Error()))
			continue
		}
		if !meta.PhotoTakenTime.Timestamp.set {
			continue
		}

		coord := meta.GeoData.coordinate()
		if coord == nil {
			coord = meta.GeoDataExif.coordinate()
		}

		t := time.Unix(meta.PhotoTakenTime.Timestamp.value, 0).In(s.location(coord))
		res := found(t, coord, "Sidecar:photoTakenTime")
		res.Anomalies = out.Anomalies
		return res
	}

	return out
}

func (s *SidecarSource) location(coord *types.Coordinate) *time.Location {
	if s.zones != nil && coord != nil {
		if loc := s.zones.Location(*coord); loc != nil {
			return loc
		}
	}
	return time.Local
}
