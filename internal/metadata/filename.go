package metadata

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

var (
	dateTimePattern = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})`)
	datePatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`),
		regexp.MustCompile(`(20\d{2})[-_](\d{2})[-_](\d{2})`),
		regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})[_-]\d{6}`),
	}
)

// DateFromFilename infers a capture date from common camera and messenger
// naming schemes. Impossible calendar dates are not matches. When the date is
// followed by a valid HHMMSS suffix the time of day is kept as well.
func DateFromFilename(name string) (time.Time, bool) {
	if m := dateTimePattern.FindStringSubmatch(name); m != nil {
		if t, ok := civilTime(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}

	for _, p := range datePatterns {
		m := p.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if t, ok := civilTime(m[1], m[2], m[3], "0", "0", "0"); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func civilTime(year, month, day, hour, minute, second string) (time.Time, bool) {
	var v [6]int
	for i, s := range []string{year, month, day, hour, minute, second} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		v[i] = n
	}
	if v[3] > 23 || v[4] > 59 || v[5] > 59 {
		return time.Time{}, false
	}

	t := time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, time.Local)
	if t.Year() != v[0] || int(t.Month()) != v[1] || t.Day() != v[2] {
		return time.Time{}, false
	}
	return t, true
}

// FilenameSource infers the date from the file name. Every hit is flagged as
// a low-confidence fallback.
type FilenameSource struct{}

func NewFilenameSource() *FilenameSource {
	return &FilenameSource{}
}

func (s *FilenameSource) Name() string { return "Filename" }

func (s *FilenameSource) Resolve(_ context.Context, asset types.Asset) Finding {
	t, ok := DateFromFilename(asset.Name)
	if !ok {
		return Finding{}
	}

	res := found(t, nil, "Filename")
	res.Anomalies = []types.AnomalyRecord{
		anomaly(types.AnomalyFilenameFallback, asset.DisplayPath(), ""),
	}
	return res
}

// ModTimeSource uses the filesystem modification time as the last resort.
type ModTimeSource struct{}

func NewModTimeSource() *ModTimeSource {
	return &ModTimeSource{}
}

func (s *ModTimeSource) Name() string { return "ModTime" }

func (s *ModTimeSource) Resolve(_ context.Context, asset types.Asset) Finding {
	if asset.ModTime.IsZero() {
		return Finding{}
	}
	return found(asset.ModTime.In(time.Local), nil, "ModTime")
}
