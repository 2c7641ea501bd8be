package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"go.uber.org/zap"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const DefaultProbeTimeout = 15 * time.Second

// Probe reads the creation time recorded in a video container.
type Probe interface {
	Name() string
	CreationTime(ctx context.Context, path string) (time.Time, error)
}

// VideoSource asks a Probe for the container creation time of video assets.
// Probe failures are logged and never recorded as anomalies.
type VideoSource struct {
	probe   Probe
	timeout time.Duration
	logger  *zap.Logger
}

func NewVideoSource(probe Probe, timeout time.Duration, logger *zap.Logger) *VideoSource {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoSource{probe: probe, timeout: timeout, logger: logger}
}

func (s *VideoSource) Name() string { return "Video" }

func (s *VideoSource) Resolve(ctx context.Context, asset types.Asset) Finding {
	if !asset.IsVideo || s.probe == nil {
		return Finding{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := s.probe.CreationTime(ctx, asset.Path)
	if err != nil {
		if !errors.Is(err, ErrNoCreationTime) {
			s.logger.Warn("video probe failed",
				zap.String("probe", s.probe.Name()),
				zap.String("path", asset.DisplayPath()),
				zap.Error(err))
		}
		return Finding{}
	}

	return found(t.In(time.Local), nil, "Video:"+s.probe.Name())
}

// NewProbe builds the probe selected by kind. It returns nil for VideoProbeNone.
func NewProbe(kind types.VideoProbe, ffprobePath string) Probe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	switch kind {
	case types.VideoProbeNone:
		return nil
	case types.VideoProbeFFProbe:
		return &FFProbe{Path: ffprobePath}
	case types.VideoProbeMP4:
		return &MP4Probe{}
	}

	if resolved, err := exec.LookPath(ffprobePath); err == nil {
		return &FFProbe{Path: resolved}
	}
	return &MP4Probe{}
}

// FFProbe shells out to ffprobe and reads format_tags=creation_time.
type FFProbe struct {
	Path string
}

func (p *FFProbe) Name() string { return "ffprobe" }

func (p *FFProbe) CreationTime(ctx context.Context, path string) (time.Time, error) {
	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "quiet",
		"-show_entries", "format_tags=creation_time",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return time.Time{}, fmt.Errorf("ffprobe: %w", ctx.Err())
		}
		return time.Time{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	value := strings.TrimSpace(stdout.String())
	if value == "" {
		return time.Time{}, ErrNoCreationTime
	}
	// multiple streams can each print a line; the format tag comes first
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}

	return parseCreationTime(value)
}

var creationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseCreationTime accepts ISO-8601 style values with or without a zone.
// Values without a zone are taken as UTC.
func parseCreationTime(value string) (time.Time, error) {
	for _, layout := range creationTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation_time %q", value)
}

// MP4Probe reads the mvhd box of ISO base media files in process.
type MP4Probe struct{}

func (p *MP4Probe) Name() string { return "mp4" }

func (p *MP4Probe) CreationTime(ctx context.Context, path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	var created uint64
	_, err = mp4.ReadBoxStructure(f, func(h *mp4.ReadHandle) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch h.BoxInfo.Type {
		case mp4.BoxTypeMoov():
			return h.Expand()
		case mp4.BoxTypeMvhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading mvhd payload: %w", err)
			}
			if mvhd, ok := box.(*mp4.Mvhd); ok {
				created = mvhd.GetCreationTime()
			}
		}
		return nil, nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("reading mp4 boxes: %w", err)
	}

	t := isoBMFFTimestamp(created)
	if t.IsZero() {
		return time.Time{}, ErrNoCreationTime
	}
	return t, nil
}

// Seconds between 1904-01-01 (the ISO/IEC 14496-12 epoch) and the Unix epoch.
const isoBMFFEpochOffset uint64 = 2082844800

func isoBMFFTimestamp(ts uint64) time.Time {
	if ts <= isoBMFFEpochOffset {
		return time.Time{}
	}
	return time.Unix(int64(ts-isoBMFFEpochOffset), 0).UTC()
}
