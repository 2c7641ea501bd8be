// Package types defines core data structures used across TakeoutPipe modules.
package types

import (
	"fmt"
	"time"
)

// Asset represents a discovered media file with its filesystem metadata.
type Asset struct {
	// Path is the absolute path to the readable file (the staged copy for archive members).
	Path string
	// Origin is the human-facing location used in reports
	// (e.g. "source/takeout-001.zip:Takeout/Google Photos/a.jpg").
	Origin string
	// Name is the base filename.
	Name string
	// Size is the file size in bytes.
	Size int64
	// ModTime is the file modification time. Zero if unknown.
	ModTime time.Time
	// Extension is the lowercase file extension without dot (e.g., "jpg", "mp4").
	Extension string
	// IsVideo indicates if this is a video file.
	IsVideo bool
}

// DisplayPath returns Origin when set, otherwise Path.
func (a Asset) DisplayPath() string {
	if a.Origin != "" {
		return a.Origin
	}
	return a.Path
}

// Coordinate is a signed decimal-degree GPS position.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// ResolvedMoment is the best-effort capture time and location of an asset.
// Coordinate is only ever set together with Timestamp.
type ResolvedMoment struct {
	// Timestamp is the capture time. Nil if no source yielded one.
	Timestamp *time.Time
	// Coordinate is the capture location. Nil if no source yielded one.
	Coordinate *Coordinate
	// Source names the metadata source that won (e.g., "EXIF:DateTimeOriginal", "Sidecar:photoTakenTime").
	Source string
}

// Place is the reverse-geocoded identity of a coordinate.
type Place struct {
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

func (p Place) String() string {
	switch {
	case p.Locality == "":
		return p.Country
	case p.Country == "":
		return p.Locality
	}
	return p.Locality + ", " + p.Country
}

// Bucket is the destination grouping derived from a resolved moment.
type Bucket struct {
	// Rel is the bucket path relative to the output root (e.g., "2023/04/05" or "unclassified").
	Rel string
	// Dir is the absolute destination directory.
	Dir string
	// Year is the capture year; zero for the unclassified bucket.
	Year int
	// Classified is false for the unclassified bucket.
	Classified bool
}

// AnomalyCategory classifies an exceptional condition met while processing an asset.
type AnomalyCategory string

const (
	AnomalyDuplicate          AnomalyCategory = "duplicate"
	AnomalyUnclassified       AnomalyCategory = "unclassified"
	AnomalyFormatUnrecognized AnomalyCategory = "format-not-recognized"
	AnomalyCorruptedMetadata  AnomalyCategory = "corrupted-metadata"
	AnomalyFilenameFallback   AnomalyCategory = "filename-fallback-used"
	AnomalyGeocodeFailed      AnomalyCategory = "geocode-failed"
	AnomalyNoLocation         AnomalyCategory = "no-location"
)

// AnomalyCategories lists every category in report order.
var AnomalyCategories = []AnomalyCategory{
	AnomalyDuplicate,
	AnomalyUnclassified,
	AnomalyFormatUnrecognized,
	AnomalyCorruptedMetadata,
	AnomalyFilenameFallback,
	AnomalyGeocodeFailed,
	AnomalyNoLocation,
}

// AnomalyRecord is a single categorized event.
type AnomalyRecord struct {
	Category AnomalyCategory
	Path     string
	// Detail is the reason or, for duplicates, the prior destination.
	Detail string
}

// Line renders the record the way it appears in its report file.
func (r AnomalyRecord) Line() string {
	if r.Detail == "" {
		return r.Path
	}
	if r.Category == AnomalyDuplicate {
		return r.Path + " -> " + r.Detail
	}
	return r.Path + " | " + r.Detail
}

// PlaceCount is a place with its number of occurrences.
type PlaceCount struct {
	Place Place `json:"place"`
	Count int   `json:"count"`
}

// OrganizeStrategy defines how files are organized into directories.
type OrganizeStrategy string

const (
	// OrganizeByDate: YYYY/MM/DD structure
	OrganizeByDate OrganizeStrategy = "date"
	// OrganizeByEvent: YYYY/YYMMDD-EventName structure
	OrganizeByEvent OrganizeStrategy = "event"
)

// DigestAlgorithm selects the content hash used for deduplication.
type DigestAlgorithm string

const (
	DigestSHA256 DigestAlgorithm = "sha256"
	DigestBLAKE3 DigestAlgorithm = "blake3"
)

// VideoProbe selects how video container creation times are read.
type VideoProbe string

const (
	VideoProbeAuto    VideoProbe = "auto"
	VideoProbeFFProbe VideoProbe = "ffprobe"
	VideoProbeMP4     VideoProbe = "mp4"
	VideoProbeNone    VideoProbe = "none"
)

// GeocoderBackend selects the reverse-geocoding implementation.
type GeocoderBackend string

const (
	GeocoderNominatim GeocoderBackend = "nominatim"
	GeocoderOffline   GeocoderBackend = "offline"
	GeocoderNone      GeocoderBackend = "none"
)

// RunSummary contains statistics for a completed run.
type RunSummary struct {
	ScannedFiles   int           `json:"scanned_files"`
	Archives       int           `json:"archives"`
	Filed          int           `json:"filed"`
	Duplicates     int           `json:"duplicates"`
	Unclassified   int           `json:"unclassified"`
	Geocoded       int           `json:"geocoded"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	BytesCopied    int64         `json:"bytes_copied"`
	BytesPerSecond float64       `json:"bytes_per_second"`
}

// RunStatus is how a run ended.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusCanceled  RunStatus = "canceled"
	RunStatusFailed    RunStatus = "failed"
)

// RunHistoryEntry records one finished run against a destination.
type RunHistoryEntry struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DryRun    bool       `json:"dry_run"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Summary   RunSummary `json:"summary"`
	CreatedAt time.Time  `json:"created_at"`
}

// RunHistory stores the most recent runs, newest first.
type RunHistory struct {
	Entries   []RunHistoryEntry `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}
