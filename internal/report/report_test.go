package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/On-Jun9/TakeoutPipe/internal/aggregate"
	"github.com/On-Jun9/TakeoutPipe/internal/anomaly"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

var (
	seoul = types.Place{Locality: "Seoul", Country: "South Korea"}
	busan = types.Place{Locality: "Busan", Country: "South Korea"}
)

func sampleSummary() aggregate.Summary {
	agg := aggregate.New()
	day := types.Bucket{Rel: "2023/04/05", Year: 2023, Classified: true}
	agg.Record(day, seoul)
	agg.Record(day, seoul)
	agg.Record(day, busan)
	return agg.Summarize()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite_CategoryFilesSortedAndDeduplicated(t *testing.T) {
	dir := t.TempDir()
	log := anomaly.New()
	log.Record(types.AnomalyDuplicate, "/src/b.jpg", "/dest/2023/04/05/a.jpg")
	log.Record(types.AnomalyDuplicate, "/src/a.jpg", "/dest/2023/04/05/a.jpg")
	log.Record(types.AnomalyDuplicate, "/src/a.jpg", "/dest/2023/04/05/a.jpg")
	log.Record(types.AnomalyCorruptedMetadata, "/src/c.jpg", "bad tag")

	require.NoError(t, New(dir).Write(log, aggregate.Summary{}))

	assert.Equal(t,
		"/src/a.jpg -> /dest/2023/04/05/a.jpg\n/src/b.jpg -> /dest/2023/04/05/a.jpg\n",
		readFile(t, filepath.Join(dir, "duplicate_files.txt")))
	assert.Equal(t, "/src/c.jpg | bad tag\n", readFile(t, filepath.Join(dir, "corrupted_exif_files.txt")))

	for _, category := range types.AnomalyCategories {
		assert.FileExists(t, filepath.Join(dir, FileNames[category]))
	}
	assert.Empty(t, readFile(t, filepath.Join(dir, "geocode_failed.txt")))
}

func TestWrite_PlaceSummary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New(dir).Write(anomaly.New(), sampleSummary()))

	got := readFile(t, filepath.Join(dir, PlacesFile))
	assert.Equal(t, "=== All years ===\n"+
		"- Seoul, South Korea (2)\n"+
		"- Busan, South Korea (1)\n"+
		"\n=== 2023 ===\n"+
		"- Seoul, South Korea (2)\n"+
		"- Busan, South Korea (1)\n"+
		"\n=== Buckets ===\n"+
		"2023/04/05: Seoul, South Korea (2 places)\n", got)
}

func TestWriteBucketLocations(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, New(root).WriteBucketLocations(root, sampleSummary()))

	got := readFile(t, filepath.Join(root, "2023", "04", "05", LocationFile))
	assert.Equal(t, "Primary location:\nSeoul, South Korea\n\n"+
		"Locations:\n- Seoul, South Korea (2)\n- Busan, South Korea (1)\n", got)
}

func TestWrite_UncreatableDir(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0644))

	err := New(filepath.Join(parent, "reports")).Write(anomaly.New(), aggregate.Summary{})
	assert.Error(t, err)
}
