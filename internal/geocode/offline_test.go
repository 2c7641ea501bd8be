package geocode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

func geoNamesRow(id, name, lat, lon, cc string) string {
	cols := make([]string, 19)
	cols[0] = id
	cols[1] = name
	cols[2] = name
	cols[4] = lat
	cols[5] = lon
	cols[6] = "P"
	cols[7] = "PPL"
	cols[8] = cc
	return strings.Join(cols, "\t")
}

func writeCities(t *testing.T) string {
	t.Helper()
	rows := []string{
		geoNamesRow("1835848", "Seoul", "37.566", "126.9784", "KR"),
		geoNamesRow("1838524", "Busan", "35.10168", "129.03004", "KR"),
		geoNamesRow("1850147", "Tokyo", "35.6895", "139.69171", "JP"),
		geoNamesRow("2147714", "Sydney", "-33.86785", "151.20732", "AU"),
	}
	path := filepath.Join(t.TempDir(), "cities1000.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

func TestOfflineBackend_NearestCity(t *testing.T) {
	b, err := LoadOfflineBackend(writeCities(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Len())

	tests := []struct {
		coord types.Coordinate
		want  types.Place
	}{
		{types.Coordinate{Latitude: 37.55, Longitude: 127.0}, types.Place{Locality: "Seoul", Country: "KR"}},
		{types.Coordinate{Latitude: 35.2, Longitude: 129.1}, types.Place{Locality: "Busan", Country: "KR"}},
		{types.Coordinate{Latitude: 35.7, Longitude: 139.7}, types.Place{Locality: "Tokyo", Country: "JP"}},
		{types.Coordinate{Latitude: -33.9, Longitude: 151.2}, types.Place{Locality: "Sydney", Country: "AU"}},
	}
	for _, tt := range tests {
		got, err := b.Lookup(context.Background(), tt.coord)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "coord %v", tt.coord)
	}
}

func TestOfflineBackend_MaxDistance(t *testing.T) {
	b, err := LoadOfflineBackend(writeCities(t), 50)
	require.NoError(t, err)

	_, err = b.Lookup(context.Background(), types.Coordinate{Latitude: -60, Longitude: -40})
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestOfflineBackend_NearestAcrossAntimeridian(t *testing.T) {
	for _, maxKm := range []float64{0, 50} {
		b := &OfflineBackend{maxKm: maxKm}
		b.Add("Wrap", "FJ", -18, 179.95)
		for i := 0; i < 10; i++ {
			b.Add(fmt.Sprintf("Decoy%d", i), "FJ", -18, -178.5-float64(i)*0.01)
		}

		got, err := b.Lookup(context.Background(), types.Coordinate{Latitude: -18, Longitude: -179.95})
		require.NoError(t, err, "maxKm %v", maxKm)
		assert.Equal(t, "Wrap", got.Locality, "maxKm %v", maxKm)
	}
}

func TestOfflineBackend_NearestAtHighLatitude(t *testing.T) {
	// 20 degrees of longitude at 80N is closer than 5 degrees of latitude.
	b := &OfflineBackend{}
	b.Add("East", "SJ", 80, 20)
	b.Add("South", "SJ", 75, 0)
	for i := 0; i < 10; i++ {
		b.Add(fmt.Sprintf("Decoy%d", i), "SJ", 74.5-float64(i)*0.1, 0)
	}

	got, err := b.Lookup(context.Background(), types.Coordinate{Latitude: 80, Longitude: 0})
	require.NoError(t, err)
	assert.Equal(t, "East", got.Locality)
}

func TestOfflineBackend_EmptyIndex(t *testing.T) {
	_, err := (&OfflineBackend{}).Lookup(context.Background(), types.Coordinate{Latitude: 1, Longitude: 1})
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestSearchBoxes(t *testing.T) {
	boxes := searchBoxes(types.Coordinate{Latitude: 0, Longitude: 179.9}, 50)
	require.Len(t, boxes, 2)
	assert.Equal(t, 180.0, boxes[0].max[0])
	assert.Equal(t, -180.0, boxes[1].min[0])

	polar := searchBoxes(types.Coordinate{Latitude: 89.9, Longitude: 10}, 50)
	require.Len(t, polar, 1)
	assert.Equal(t, -180.0, polar[0].min[0])
	assert.Equal(t, 90.0, polar[0].max[1])

	plain := searchBoxes(types.Coordinate{Latitude: 37.5, Longitude: 127}, 50)
	require.Len(t, plain, 1)
	assert.Less(t, plain[0].min[0], 127.0)
	assert.Greater(t, plain[0].max[0], 127.0)
}

func TestLoadOfflineBackend_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadOfflineBackend(filepath.Join(dir, "missing.txt"), 0)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1\tx\tx\t\tnorth\t1\tP\tPPL\tKR\n"), 0644))
	_, err = LoadOfflineBackend(bad, 0)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# comment only\n"), 0644))
	_, err = LoadOfflineBackend(empty, 0)
	assert.Error(t, err)
}

func TestHaversineKm(t *testing.T) {
	// Seoul to Busan is roughly 325 km
	d := haversineKm(37.566, 126.9784, 35.10168, 129.03004)
	assert.InDelta(t, 325, d, 10)
}
