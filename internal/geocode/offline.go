package geocode

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/rtree"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const earthRadiusKm = 6371.0

// initialSearchKm is the first radius tried when the distance is unbounded.
const initialSearchKm = 50.0

// OfflineBackend answers from a local GeoNames cities dump
// (cities1000.txt / cities15000.txt), returning the nearest city.
// Country is the ISO 3166 alpha-2 code found in the dump.
type OfflineBackend struct {
	tree  rtree.RTreeG[city]
	count int
	maxKm float64
}

type city struct {
	name    string
	country string
	lat     float64
	lon     float64
}

// LoadOfflineBackend indexes the GeoNames file at path. maxKm bounds how
// far the nearest city may be; zero means unbounded.
func LoadOfflineBackend(path string, maxKm float64) (*OfflineBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cities file: %w", err)
	}
	defer f.Close()

	b := &OfflineBackend{maxKm: maxKm}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		c, err := parseGeoNamesLine(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		b.Add(c.name, c.country, c.lat, c.lon)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	if b.count == 0 {
		return nil, fmt.Errorf("cities file %s has no entries", path)
	}

	return b, nil
}

// GeoNames main table columns used here.
const (
	colName        = 1
	colLatitude    = 4
	colLongitude   = 5
	colCountryCode = 8
)

func parseGeoNamesLine(text string) (city, error) {
	fields := strings.Split(text, "\t")
	if len(fields) <= colCountryCode {
		return city{}, fmt.Errorf("expected at least %d columns, got %d", colCountryCode+1, len(fields))
	}
	lat, err := strconv.ParseFloat(fields[colLatitude], 64)
	if err != nil {
		return city{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[colLongitude], 64)
	if err != nil {
		return city{}, fmt.Errorf("longitude: %w", err)
	}
	return city{
		name:    fields[colName],
		country: fields[colCountryCode],
		lat:     lat,
		lon:     lon,
	}, nil
}

// Add indexes a single city.
func (b *OfflineBackend) Add(name, country string, lat, lon float64) {
	pt := [2]float64{lon, lat}
	b.tree.Insert(pt, pt, city{name: name, country: country, lat: lat, lon: lon})
	b.count++
}

func (b *OfflineBackend) Len() int {
	return b.count
}

func (b *OfflineBackend) Name() string { return "offline" }

func (b *OfflineBackend) Lookup(ctx context.Context, coord types.Coordinate) (types.Place, error) {
	if err := ctx.Err(); err != nil {
		return types.Place{}, err
	}

	radius := initialSearchKm
	if b.maxKm > 0 {
		radius = b.maxKm
	}
	for {
		best, bestKm, ok := b.nearestWithin(coord, radius)
		switch {
		case ok && bestKm <= radius:
			return types.Place{Locality: best.name, Country: best.country}, nil
		case b.maxKm > 0:
			return types.Place{}, fmt.Errorf("%w: no city within %.0f km", ErrNoResult, b.maxKm)
		case radius >= math.Pi*earthRadiusKm:
			return types.Place{}, ErrNoResult
		}
		radius *= 4
	}
}

// nearestWithin returns the closest city found in the boxes covering the
// cap of radiusKm around coord. The result may lie outside the cap.
func (b *OfflineBackend) nearestWithin(coord types.Coordinate, radiusKm float64) (city, float64, bool) {
	var best city
	bestKm := math.Inf(1)
	for _, bx := range searchBoxes(coord, radiusKm) {
		b.tree.Search(bx.min, bx.max, func(_, _ [2]float64, c city) bool {
			if d := haversineKm(coord.Latitude, coord.Longitude, c.lat, c.lon); d < bestKm {
				best, bestKm = c, d
			}
			return true
		})
	}
	return best, bestKm, !math.IsInf(bestKm, 1)
}

type box struct {
	min, max [2]float64
}

// searchBoxes bounds every point within radiusKm of coord in [lon, lat]
// space. The box is split in two when it crosses the antimeridian and spans
// all longitudes when the cap reaches a pole.
func searchBoxes(coord types.Coordinate, radiusKm float64) []box {
	const deg = 180 / math.Pi
	delta := radiusKm / earthRadiusKm
	lat := coord.Latitude / deg
	minLat, maxLat := (lat-delta)*deg, (lat+delta)*deg

	if minLat <= -90 || maxLat >= 90 {
		return []box{{[2]float64{-180, math.Max(minLat, -90)}, [2]float64{180, math.Min(maxLat, 90)}}}
	}
	s := math.Sin(delta) / math.Cos(lat)
	if s >= 1 {
		return []box{{[2]float64{-180, minLat}, [2]float64{180, maxLat}}}
	}

	dLon := math.Asin(s) * deg
	minLon, maxLon := coord.Longitude-dLon, coord.Longitude+dLon
	switch {
	case minLon < -180:
		return []box{
			{[2]float64{minLon + 360, minLat}, [2]float64{180, maxLat}},
			{[2]float64{-180, minLat}, [2]float64{maxLon, maxLat}},
		}
	case maxLon > 180:
		return []box{
			{[2]float64{minLon, minLat}, [2]float64{180, maxLat}},
			{[2]float64{-180, minLat}, [2]float64{maxLon - 360, maxLat}},
		}
	}
	return []box{{[2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}}}
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
