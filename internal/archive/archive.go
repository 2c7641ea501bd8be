// Package archive streams media members (and their metadata sidecars) out of
// compressed exports into a staging directory, one member at a time.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/mholt/archives"
	"go.uber.org/zap"

	"github.com/On-Jun9/TakeoutPipe/internal/scanner"
	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// ErrNotArchive is returned for files whose format cannot be extracted.
var ErrNotArchive = errors.New("not an extractable archive")

type Extractor struct {
	logger          *zap.Logger
	isMedia         func(name string) bool
	sidecarSuffixes []string
}

// NewExtractor returns an extractor keeping members for which isMedia is true
// plus any member that looks like a sidecar of one.
func NewExtractor(logger *zap.Logger, isMedia func(name string) bool, sidecarSuffixes []string) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger, isMedia: isMedia, sidecarSuffixes: sidecarSuffixes}
}

func (e *Extractor) isSidecar(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range e.sidecarSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return strings.HasSuffix(lower, "m01.xml")
}

// Extract writes the wanted members of archivePath below stagingDir and
// returns the media assets, ordered by their name inside the archive.
func (e *Extractor) Extract(ctx context.Context, archivePath, stagingDir string) ([]types.Asset, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, filepath.Base(archivePath), f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return nil, fmt.Errorf("%s: %w", archivePath, ErrNotArchive)
		}
		return nil, fmt.Errorf("identify %s: %w", archivePath, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", archivePath, format.Extension(), ErrNotArchive)
	}

	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, err
	}

	var assets []types.Asset
	var sidecars int
	err = ex.Extract(ctx, stream, func(ctx context.Context, info archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		media := e.isMedia(info.NameInArchive)
		if !media && !e.isSidecar(info.NameInArchive) {
			return nil
		}

		dest, err := stagingPath(stagingDir, info.NameInArchive)
		if err != nil {
			e.logger.Warn("skipping archive member", zap.String("archive", archivePath), zap.Error(err))
			return nil
		}
		if err := writeMember(info, dest); err != nil {
			return fmt.Errorf("extract %s: %w", info.NameInArchive, err)
		}
		if mt := info.ModTime(); !mt.IsZero() {
			if err := chtimes(dest, mt, mt); err != nil {
				e.logger.Warn("failed to restore member mtime",
					zap.String("archive", archivePath),
					zap.String("member", info.NameInArchive),
					zap.Error(err))
			}
		}

		if !media {
			sidecars++
			return nil
		}

		st, err := os.Stat(dest)
		if err != nil {
			return err
		}
		origin := archivePath + ":" + info.NameInArchive
		assets = append(assets, scanner.NewAsset(dest, origin, st))
		return nil
	})
	if err != nil {
		return assets, fmt.Errorf("extract %s: %w", archivePath, err)
	}

	sort.SliceStable(assets, func(i, j int) bool { return natural.Less(assets[i].Origin, assets[j].Origin) })

	e.logger.Info("archive staged",
		zap.String("archive", archivePath),
		zap.String("format", format.Extension()),
		zap.Int("media", len(assets)),
		zap.Int("sidecars", sidecars))

	return assets, nil
}

// chtimes is swapped out in tests.
var chtimes = os.Chtimes

// stagingPath maps a member name below root, refusing names that escape it.
func stagingPath(root, nameInArchive string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(nameInArchive, `\`, "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid member name %q", nameInArchive)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

func writeMember(info archives.FileInfo, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	src, err := info.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, src)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
