// Package report writes the anomaly lists and place summaries of a run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/On-Jun9/TakeoutPipe/internal/aggregate"
	"github.com/On-Jun9/TakeoutPipe/internal/anomaly"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const (
	PlacesFile   = "places.txt"
	LocationFile = "location.txt"
)

// FileNames maps each anomaly category to its report file.
var FileNames = map[types.AnomalyCategory]string{
	types.AnomalyDuplicate:          "duplicate_files.txt",
	types.AnomalyUnclassified:       "unclassified_files.txt",
	types.AnomalyFormatUnrecognized: "file_format_not_recognized.txt",
	types.AnomalyCorruptedMetadata:  "corrupted_exif_files.txt",
	types.AnomalyFilenameFallback:   "used_filename_fallback.txt",
	types.AnomalyGeocodeFailed:      "geocode_failed.txt",
	types.AnomalyNoLocation:         "no_location_list.txt",
}

type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write rewrites every category file and the place summary. Category files
// are written even when empty so a re-run never leaves stale lists behind.
func (w *Writer) Write(anomalies *anomaly.Log, summary aggregate.Summary) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	for _, category := range types.AnomalyCategories {
		path := filepath.Join(w.dir, FileNames[category])
		if err := writeLines(path, anomalies.Entries(category)); err != nil {
			return fmt.Errorf("write %s report: %w", category, err)
		}
	}

	if err := os.WriteFile(filepath.Join(w.dir, PlacesFile), []byte(FormatPlaces(summary)), 0644); err != nil {
		return fmt.Errorf("write place summary: %w", err)
	}
	return nil
}

// WriteBucketLocations writes location.txt into every bucket directory under
// root that has at least one place.
func (w *Writer) WriteBucketLocations(root string, summary aggregate.Summary) error {
	for _, b := range summary.Buckets {
		if len(b.Places) == 0 {
			continue
		}
		dir := filepath.Join(root, filepath.FromSlash(b.Bucket))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, LocationFile), []byte(FormatBucket(b)), 0644); err != nil {
			return fmt.Errorf("write location for %s: %w", b.Bucket, err)
		}
	}
	return nil
}

// FormatBucket renders one bucket's location.txt.
func FormatBucket(b aggregate.BucketSummary) string {
	var sb strings.Builder
	sb.WriteString("Primary location:\n")
	fmt.Fprintf(&sb, "%s\n\n", b.Primary)
	sb.WriteString("Locations:\n")
	writeRanking(&sb, b.Places)
	return sb.String()
}

// FormatPlaces renders the global, per-year and per-bucket rankings.
func FormatPlaces(s aggregate.Summary) string {
	var sb strings.Builder

	sb.WriteString("=== All years ===\n")
	writeRanking(&sb, s.Global)

	for _, y := range s.Years {
		fmt.Fprintf(&sb, "\n=== %d ===\n", y.Year)
		writeRanking(&sb, y.Places)
	}

	if len(s.Buckets) > 0 {
		sb.WriteString("\n=== Buckets ===\n")
		for _, b := range s.Buckets {
			fmt.Fprintf(&sb, "%s: %s (%d places)\n", b.Bucket, b.Primary, len(b.Places))
		}
	}

	return sb.String()
}

func writeRanking(sb *strings.Builder, places []types.PlaceCount) {
	for _, pc := range places {
		fmt.Fprintf(sb, "- %s (%d)\n", pc.Place, pc.Count)
	}
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0644)
}
