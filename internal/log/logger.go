package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const timeLayout = "2006/01/02 15:04:05.000"

// Logger is the process logger. Structured entries go through the embedded
// zap.Logger; Summary prints plain text to the console.
type Logger struct {
	*zap.Logger
	RunID   string
	console io.Writer
	file    *os.File
}

// New builds a logger that writes info and above to stderr and, when
// logFilePath is set, everything from debug up to that file.
func New(logFilePath string, logJSON bool) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.Format(timeLayout))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zap.InfoLevel),
	}

	var file *os.File
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		file = f

		fileEncoder := zapcore.NewConsoleEncoder(encCfg)
		if logJSON {
			fileEncoder = zapcore.NewJSONEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), zap.DebugLevel))
	}

	runID := uuid.NewString()
	return &Logger{
		Logger:  zap.New(zapcore.NewTee(cores...)).With(zap.String("run_id", runID)),
		RunID:   runID,
		console: os.Stdout,
		file:    file,
	}, nil
}

func (l *Logger) Close() error {
	if l.Logger != nil {
		_ = l.Logger.Sync()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogPlacement records one filed asset.
func (l *Logger) LogPlacement(origin, dest, source string, duration time.Duration) {
	l.Info("filed",
		zap.String("source", origin),
		zap.String("dest", dest),
		zap.String("metadata", source),
		zap.Duration("duration", duration),
	)
}

func (l *Logger) Summary(summary types.RunSummary) {
	fmt.Fprintln(l.console, "\n=== TakeoutPipe Summary ===")
	fmt.Fprintf(l.console, "Scanned files:  %d\n", summary.ScannedFiles)
	fmt.Fprintf(l.console, "Archives:       %d\n", summary.Archives)
	fmt.Fprintf(l.console, "Filed:          %d\n", summary.Filed)
	fmt.Fprintf(l.console, "Duplicates:     %d\n", summary.Duplicates)
	fmt.Fprintf(l.console, "Unclassified:   %d\n", summary.Unclassified)
	fmt.Fprintf(l.console, "Geocoded:       %d\n", summary.Geocoded)
	fmt.Fprintf(l.console, "Skipped:        %d\n", summary.Skipped)
	fmt.Fprintf(l.console, "Failed:         %d\n", summary.Failed)
	fmt.Fprintf(l.console, "Duration:       %s\n", summary.Duration.Round(time.Second))
	if summary.BytesCopied > 0 {
		fmt.Fprintf(l.console, "Bytes copied:   %s\n", humanize.Bytes(uint64(summary.BytesCopied)))
		fmt.Fprintf(l.console, "Speed:          %s/s\n", humanize.Bytes(uint64(summary.BytesPerSecond)))
	}
	fmt.Fprintln(l.console, "===========================")
}
