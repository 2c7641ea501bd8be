// Package planner maps a resolved moment to its destination bucket.
package planner

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const DefaultUnclassifiedDir = "unclassified"

type Planner struct {
	destRoot         string
	unclassifiedDir  string
	organizeStrategy types.OrganizeStrategy
	eventName        string
}

func New(destRoot, unclassifiedDir string, organizeStrategy types.OrganizeStrategy, eventName string) *Planner {
	if unclassifiedDir == "" {
		unclassifiedDir = DefaultUnclassifiedDir
	}
	return &Planner{
		destRoot:         destRoot,
		unclassifiedDir:  unclassifiedDir,
		organizeStrategy: organizeStrategy,
		eventName:        eventName,
	}
}

// Place is a pure function of its inputs.
func (p *Planner) Place(asset types.Asset, moment types.ResolvedMoment) types.Bucket {
	if moment.Timestamp == nil {
		rel := filepath.ToSlash(p.unclassifiedDir)
		return types.Bucket{
			Rel: rel,
			Dir: filepath.Join(p.destRoot, filepath.FromSlash(rel)),
		}
	}

	t := *moment.Timestamp
	b := types.Bucket{Year: t.Year(), Classified: true}

	switch p.organizeStrategy {
	case types.OrganizeByEvent:
		// YYYY/YYMMDD-EventName/FileType structure
		folderName := t.Format("060102")
		if p.eventName != "" {
			folderName += "-" + p.eventName
		}
		b.Rel = path.Join(t.Format("2006"), folderName)
		b.Dir = filepath.Join(p.destRoot, filepath.FromSlash(b.Rel), fileTypeFolder(asset.Extension))

	default: // OrganizeByDate
		b.Rel = path.Join(t.Format("2006"), t.Format("01"), t.Format("02"))
		b.Dir = filepath.Join(p.destRoot, filepath.FromSlash(b.Rel))
	}

	return b
}

// fileTypeFolder returns the folder name based on file extension
func fileTypeFolder(ext string) string {
	switch strings.ToLower(ext) {
	case "raw", "arw", "cr2", "cr3", "nef", "dng", "raf", "orf", "rw2", "srw":
		return "RAW"
	case "mp4", "mov", "avi", "mkv", "mxf", "mts", "m2ts", "3gp", "m4v", "xml":
		return "MP4"
	}
	// jpg, jpeg, heic, heif, png, gif, webp, ...
	return "JPG"
}
