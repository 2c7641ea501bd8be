package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/On-Jun9/TakeoutPipe/internal/geocode"
	"github.com/On-Jun9/TakeoutPipe/internal/metadata"
	"github.com/On-Jun9/TakeoutPipe/internal/planner"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

type Config struct {
	Source             string                 `yaml:"source" json:"source"`
	Dest               string                 `yaml:"dest" json:"dest"`
	IncludeExtensions  []string               `yaml:"include_extensions" json:"include_extensions"`
	ArchiveExtensions  []string               `yaml:"archive_extensions" json:"archive_extensions"`
	Jobs               int                    `yaml:"jobs" json:"jobs"`
	OrganizeStrategy   types.OrganizeStrategy `yaml:"organize_strategy" json:"organize_strategy"`
	EventName          string                 `yaml:"event_name" json:"event_name"`
	UnclassifiedDir    string                 `yaml:"unclassified_dir" json:"unclassified_dir"`
	StagingDir         string                 `yaml:"staging_dir" json:"staging_dir"`
	IndexFile          string                 `yaml:"index_file" json:"index_file"`
	GeoCacheFile       string                 `yaml:"geo_cache_file" json:"geo_cache_file"`
	PlacesFile         string                 `yaml:"places_file" json:"places_file"`
	HistoryFile        string                 `yaml:"history_file" json:"history_file"`
	ReportDir          string                 `yaml:"report_dir" json:"report_dir"`
	LogFile            string                 `yaml:"log_file" json:"log_file"`
	LogJSON            bool                   `yaml:"log_json" json:"log_json"`
	DryRun             bool                   `yaml:"dry_run" json:"dry_run"`
	HashVerify         bool                   `yaml:"hash_verify" json:"hash_verify"`
	DigestAlgorithm    types.DigestAlgorithm  `yaml:"digest_algorithm" json:"digest_algorithm"`
	SidecarSuffixes    []string               `yaml:"sidecar_suffixes" json:"sidecar_suffixes"`
	VideoProbe         types.VideoProbe       `yaml:"video_probe" json:"video_probe"`
	FFProbePath        string                 `yaml:"ffprobe_path" json:"ffprobe_path"`
	ProbeTimeout       time.Duration          `yaml:"probe_timeout" json:"probe_timeout"`
	LocalizeTimestamps bool                   `yaml:"localize_timestamps" json:"localize_timestamps"`
	Geocoder           GeocoderConfig         `yaml:"geocoder" json:"geocoder"`
}

// GeocoderConfig selects and tunes the reverse-geocoding backend.
type GeocoderConfig struct {
	Backend           types.GeocoderBackend `yaml:"backend" json:"backend"`
	Endpoint          string                `yaml:"endpoint" json:"endpoint"`
	UserAgent         string                `yaml:"user_agent" json:"user_agent"`
	Language          string                `yaml:"language" json:"language"`
	Timeout           time.Duration         `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64               `yaml:"requests_per_second" json:"requests_per_second"`
	CitiesFile        string                `yaml:"cities_file" json:"cities_file"`
	MaxDistanceKm     float64               `yaml:"max_distance_km" json:"max_distance_km"`
	CachePrecision    int                   `yaml:"cache_precision" json:"cache_precision"`
}

func DefaultConfig() *Config {
	jobs := runtime.NumCPU()
	if jobs < 1 {
		jobs = 4
	}

	return &Config{
		IncludeExtensions: []string{
			"jpg", "jpeg", "heic", "heif", "png", "gif", "webp", "dng",
			"mp4", "mov", "m4v", "3gp", "avi", "mkv", "mxf",
		},
		ArchiveExtensions:  []string{"zip", "tar", "tgz", "tar.gz", "tar.bz2", "tar.xz", "7z", "rar"},
		Jobs:               jobs,
		OrganizeStrategy:   types.OrganizeByDate,
		UnclassifiedDir:    planner.DefaultUnclassifiedDir,
		StagingDir:         defaultStagingDir(),
		LogFile:            filepath.Join(stateDir(), "takeoutpipe.log"),
		DigestAlgorithm:    types.DigestSHA256,
		SidecarSuffixes:    append([]string(nil), metadata.DefaultSidecarSuffixes...),
		VideoProbe:         types.VideoProbeAuto,
		ProbeTimeout:       metadata.DefaultProbeTimeout,
		LocalizeTimestamps: true,
		Geocoder: GeocoderConfig{
			Backend:           types.GeocoderNominatim,
			Endpoint:          geocode.DefaultNominatimEndpoint,
			UserAgent:         geocode.DefaultUserAgent,
			Timeout:           geocode.DefaultTimeout,
			RequestsPerSecond: 1,
			MaxDistanceKm:     50,
			CachePrecision:    geocode.DefaultPrecision,
		},
	}
}

func stateDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".takeoutpipe")
}

func defaultStagingDir() string {
	return filepath.Join(os.TempDir(), "takeoutpipe-staging")
}

func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and enum values, then fills every
// derived default (store files under Dest, staging, timeouts).
func (c *Config) Validate() error {
	if c.Source == "" {
		return &ValidationError{Field: "source", Message: "source path is required"}
	}
	if c.Dest == "" {
		return &ValidationError{Field: "dest", Message: "destination path is required"}
	}
	if c.Jobs < 1 {
		c.Jobs = runtime.NumCPU()
	}

	switch c.OrganizeStrategy {
	case "":
		c.OrganizeStrategy = types.OrganizeByDate
	case types.OrganizeByDate, types.OrganizeByEvent:
	default:
		return &ValidationError{Field: "organize_strategy", Message: "must be date or event"}
	}

	switch c.DigestAlgorithm {
	case "":
		c.DigestAlgorithm = types.DigestSHA256
	case types.DigestSHA256, types.DigestBLAKE3:
	default:
		return &ValidationError{Field: "digest_algorithm", Message: "must be sha256 or blake3"}
	}

	switch c.VideoProbe {
	case "":
		c.VideoProbe = types.VideoProbeAuto
	case types.VideoProbeAuto, types.VideoProbeFFProbe, types.VideoProbeMP4, types.VideoProbeNone:
	default:
		return &ValidationError{Field: "video_probe", Message: "must be auto, ffprobe, mp4 or none"}
	}

	if err := c.Geocoder.validate(); err != nil {
		return err
	}

	if len(c.IncludeExtensions) == 0 {
		c.IncludeExtensions = DefaultConfig().IncludeExtensions
	}
	if len(c.SidecarSuffixes) == 0 {
		c.SidecarSuffixes = append([]string(nil), metadata.DefaultSidecarSuffixes...)
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = metadata.DefaultProbeTimeout
	}

	if c.LogFile == "" {
		c.LogFile = filepath.Join(stateDir(), "takeoutpipe.log")
	}
	if c.UnclassifiedDir == "" {
		c.UnclassifiedDir = planner.DefaultUnclassifiedDir
	}
	if c.StagingDir == "" {
		c.StagingDir = defaultStagingDir()
	}
	if c.IndexFile == "" {
		c.IndexFile = filepath.Join(c.Dest, "hash_index.json")
	}
	if c.GeoCacheFile == "" {
		c.GeoCacheFile = filepath.Join(c.Dest, "geocode_cache.json")
	}
	if c.PlacesFile == "" {
		c.PlacesFile = filepath.Join(c.Dest, "places.json")
	}
	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.Dest, HistoryFileName)
	}
	if c.ReportDir == "" {
		c.ReportDir = c.Dest
	}

	return nil
}

func (g *GeocoderConfig) validate() error {
	switch g.Backend {
	case "":
		g.Backend = types.GeocoderNominatim
	case types.GeocoderNominatim, types.GeocoderNone:
	case types.GeocoderOffline:
		if g.CitiesFile == "" {
			return &ValidationError{Field: "geocoder.cities_file", Message: "required for the offline backend"}
		}
	default:
		return &ValidationError{Field: "geocoder.backend", Message: "must be nominatim, offline or none"}
	}

	if g.Timeout <= 0 {
		g.Timeout = geocode.DefaultTimeout
	}
	if g.RequestsPerSecond <= 0 {
		g.RequestsPerSecond = 1
	}
	if g.CachePrecision <= 0 {
		g.CachePrecision = geocode.DefaultPrecision
	}
	return nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
