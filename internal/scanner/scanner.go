// Package scanner walks the source tree and finds loose media files and
// archives in a stable, natural-sorted order.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

var videoExtensions = map[string]bool{
	"mp4": true, "mov": true, "avi": true, "mkv": true, "mxf": true,
	"m4v": true, "webm": true, "wmv": true, "flv": true, "3gp": true,
	"mts": true, "m2ts": true,
}

// IsVideo reports whether ext (lowercase, no dot) is a video extension.
func IsVideo(ext string) bool {
	return videoExtensions[ext]
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// NewAsset describes the file at path. origin is the path shown in reports;
// empty means path itself.
func NewAsset(path, origin string, info fs.FileInfo) types.Asset {
	name := filepath.Base(path)
	if origin != "" {
		name = filepath.Base(filepath.FromSlash(origin))
	}
	ext := Extension(name)
	return types.Asset{
		Path:      path,
		Origin:    origin,
		Name:      name,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Extension: ext,
		IsVideo:   IsVideo(ext),
	}
}

// Result lists what a scan found, each slice in natural path order.
type Result struct {
	Media    []types.Asset
	Archives []string
}

type Scanner struct {
	includeExt  map[string]bool
	archiveExt  []string
	excludeDirs []string
	logger      *zap.Logger
}

func New(extensions, archiveExtensions []string, logger *zap.Logger) *Scanner {
	extMap := make(map[string]bool)
	for _, ext := range extensions {
		extMap[strings.TrimPrefix(strings.ToLower(ext), ".")] = true
	}

	archives := make([]string, 0, len(archiveExtensions))
	for _, ext := range archiveExtensions {
		archives = append(archives, "."+strings.TrimPrefix(strings.ToLower(ext), "."))
	}
	// longest first so ".tar.gz" wins over ".gz"
	sort.Slice(archives, func(i, j int) bool { return len(archives[i]) > len(archives[j]) })

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{includeExt: extMap, archiveExt: archives, logger: logger}
}

// Exclude skips the given directories (and everything below them) during Scan.
func (s *Scanner) Exclude(dirs ...string) {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		s.excludeDirs = append(s.excludeDirs, filepath.Clean(d))
	}
}

// IsMedia reports whether name has one of the included media extensions.
func (s *Scanner) IsMedia(name string) bool {
	return s.includeExt[Extension(name)]
}

// IsArchive reports whether name has one of the archive extensions.
func (s *Scanner) IsArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range s.archiveExt {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (s *Scanner) Scan(root string) (Result, error) {
	var res Result

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return res, err
	}

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}

		if d.IsDir() {
			if s.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		switch {
		case s.IsMedia(d.Name()):
			info, err := d.Info()
			if err != nil {
				s.logger.Warn("skipping file without stat", zap.String("path", path), zap.Error(err))
				return nil
			}
			res.Media = append(res.Media, NewAsset(path, "", info))
		case s.IsArchive(d.Name()):
			res.Archives = append(res.Archives, path)
		}
		return nil
	})

	sort.SliceStable(res.Media, func(i, j int) bool { return natural.Less(res.Media[i].Path, res.Media[j].Path) })
	sort.SliceStable(res.Archives, func(i, j int) bool { return natural.Less(res.Archives[i], res.Archives[j]) })

	return res, err
}

func (s *Scanner) excluded(path string) bool {
	for _, d := range s.excludeDirs {
		if path == d {
			return true
		}
	}
	return false
}
