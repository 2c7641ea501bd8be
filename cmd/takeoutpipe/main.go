package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/On-Jun9/TakeoutPipe/internal/config"
	"github.com/On-Jun9/TakeoutPipe/internal/pipeline"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

var (
	appVersion   = "0.1.0"
	cfgFile      string
	source       string
	dest         string
	includeExt   []string
	archiveExt   []string
	jobs         int
	strategy     string
	eventName    string
	unclassified string
	stagingDir   string
	indexFile    string
	geoCacheFile string
	placesFile   string
	reportDir    string
	logFile      string
	logJSON      bool
	dryRun       bool
	hashVerify   bool
	digest       string
	videoProbe   string
	ffprobePath  string
	geocoder     string
	citiesFile   string
	noLocalize   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "takeoutpipe",
	Short: "Deduplicate and organize Google Takeout photos/videos by capture date",
	Long: `TakeoutPipe reads Takeout archives and loose media, resolves each file's
capture time and location from EXIF, JSON/XML sidecars, video containers and
file names, and files unique content into YYYY/MM/DD folders with place
summaries and anomaly reports.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline",
	RunE:  runPipeline,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous runs against the destination",
	RunE:  showHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	for _, cmd := range []*cobra.Command{runCmd, historyCmd} {
		cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
		cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory")
	}

	runCmd.Flags().StringVarP(&source, "source", "s", "", "source directory (Takeout archives or media)")
	runCmd.Flags().StringSliceVarP(&includeExt, "include-ext", "e", nil, "media file extensions to include")
	runCmd.Flags().StringSliceVar(&archiveExt, "archive-ext", nil, "archive extensions to extract")
	runCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of analysis workers (0=auto)")
	runCmd.Flags().StringVar(&strategy, "strategy", "", "organize strategy: date, event")
	runCmd.Flags().StringVar(&eventName, "event", "", "event name for the event strategy")
	runCmd.Flags().StringVar(&unclassified, "unclassified-dir", "", "directory for files without capture date")
	runCmd.Flags().StringVar(&stagingDir, "staging-dir", "", "scratch directory for archive members")
	runCmd.Flags().StringVar(&indexFile, "index-file", "", "fingerprint index file")
	runCmd.Flags().StringVar(&geoCacheFile, "geo-cache-file", "", "geocode cache file")
	runCmd.Flags().StringVar(&placesFile, "places-file", "", "place observations file")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for report files")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "log file path")
	runCmd.Flags().BoolVar(&logJSON, "log-json", false, "write JSON logs to the log file")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and report without copying")
	runCmd.Flags().BoolVar(&hashVerify, "hash-verify", false, "verify copies with the content digest")
	runCmd.Flags().StringVar(&digest, "digest", "", "digest algorithm: sha256, blake3")
	runCmd.Flags().StringVar(&videoProbe, "video-probe", "", "video probe: auto, ffprobe, mp4, none")
	runCmd.Flags().StringVar(&ffprobePath, "ffprobe", "", "ffprobe binary path")
	runCmd.Flags().StringVar(&geocoder, "geocoder", "", "geocoder backend: nominatim, offline, none")
	runCmd.Flags().StringVar(&citiesFile, "cities-file", "", "GeoNames cities file for the offline geocoder")
	runCmd.Flags().BoolVar(&noLocalize, "no-localize", false, "keep sidecar times in the local zone instead of the photo's zone")
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if source != "" {
		cfg.Source = source
	}
	if dest != "" {
		cfg.Dest = dest
	}
	if len(includeExt) > 0 {
		cfg.IncludeExtensions = includeExt
	}
	if len(archiveExt) > 0 {
		cfg.ArchiveExtensions = archiveExt
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}
	if strategy != "" {
		cfg.OrganizeStrategy = types.OrganizeStrategy(strategy)
	}
	if eventName != "" {
		cfg.EventName = eventName
	}
	if unclassified != "" {
		cfg.UnclassifiedDir = unclassified
	}
	if stagingDir != "" {
		cfg.StagingDir = stagingDir
	}
	if indexFile != "" {
		cfg.IndexFile = indexFile
	}
	if geoCacheFile != "" {
		cfg.GeoCacheFile = geoCacheFile
	}
	if placesFile != "" {
		cfg.PlacesFile = placesFile
	}
	if reportDir != "" {
		cfg.ReportDir = reportDir
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if dryRun {
		cfg.DryRun = true
	}
	if hashVerify {
		cfg.HashVerify = true
	}
	if digest != "" {
		cfg.DigestAlgorithm = types.DigestAlgorithm(digest)
	}
	if videoProbe != "" {
		cfg.VideoProbe = types.VideoProbe(videoProbe)
	}
	if ffprobePath != "" {
		cfg.FFProbePath = ffprobePath
	}
	if geocoder != "" {
		cfg.Geocoder.Backend = types.GeocoderBackend(geocoder)
	}
	if citiesFile != "" {
		cfg.Geocoder.CitiesFile = citiesFile
	}
	if noLocalize {
		cfg.LocalizeTimestamps = false
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()
	p.SetProgressCallback(newProgressPrinter(os.Stdout).Update)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted: progress so far has been saved")
		return nil
	}
	return err
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dest != "" {
		cfg.Dest = dest
	}

	path := cfg.HistoryFile
	if path == "" {
		if cfg.Dest == "" {
			return &config.ValidationError{Field: "dest", Message: "destination path is required"}
		}
		path = filepath.Join(cfg.Dest, config.HistoryFileName)
	}

	history, err := config.NewHistoryStore(path).Load()
	if err != nil {
		return err
	}
	if len(history.Entries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, e := range history.Entries {
		mode := ""
		if e.DryRun {
			mode = " (dry run)"
		}
		fmt.Printf("%s  %-9s %s%s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Status, humanize.Time(e.CreatedAt), mode)
		fmt.Printf("    filed %d, duplicates %d, unclassified %d, failed %d, copied %s\n",
			e.Summary.Filed, e.Summary.Duplicates, e.Summary.Unclassified, e.Summary.Failed,
			humanize.Bytes(uint64(e.Summary.BytesCopied)))
		if e.Error != "" {
			fmt.Printf("    error: %s\n", e.Error)
		}
	}
	return nil
}
