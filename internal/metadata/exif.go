package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// EmbeddedSource reads the capture time and GPS block from EXIF data
// embedded in still images.
type EmbeddedSource struct{}

func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

func (s *EmbeddedSource) Name() string { return "EXIF" }

func (s *EmbeddedSource) Resolve(_ context.Context, asset types.Asset) Finding {
	if asset.IsVideo {
		return Finding{}
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return Finding{}
	}
	defer f.Close()

	head := make([]byte, 16)
	n, _ := io.ReadFull(f, head)
	if !recognizedImage(head[:n]) {
		return Finding{Anomalies: []types.AnomalyRecord{
			anomaly(types.AnomalyFormatUnrecognized, asset.DisplayPath(), ""),
		}}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Finding{}
	}

	var out Finding
	x, err := exif.Decode(f)
	if err != nil {
		if exif.IsCriticalError(err) {
			if noExif(err) {
				return Finding{}
			}
			out.Anomalies = append(out.Anomalies,
				anomaly(types.AnomalyCorruptedMetadata, asset.DisplayPath(), err.Error()))
			return out
		}
		// partial tags are still usable
		out.Anomalies = append(out.Anomalies,
			anomaly(types.AnomalyCorruptedMetadata, asset.DisplayPath(), "possibly corrupted: "+err.Error()))
	}
	if x == nil {
		return out
	}

	t, source, ok := exifCaptureTime(x)
	if !ok {
		return out
	}

	coord, _ := exifCoordinate(x)
	res := found(t, coord, source)
	res.Anomalies = out.Anomalies
	return res
}

// exifCaptureTime reads DateTimeOriginal, then DateTimeDigitized. The IFD0
// DateTime tag records the last edit, not the capture, and is ignored.
func exifCaptureTime(x *exif.Exif) (time.Time, string, bool) {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		strVal, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(strVal), time.Local)
		if err != nil {
			continue
		}
		return t, "EXIF:" + string(field), true
	}
	return time.Time{}, "", false
}

func exifCoordinate(x *exif.Exif) (*types.Coordinate, error) {
	lat, err := gpsAxis(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return nil, err
	}
	lon, err := gpsAxis(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return nil, err
	}
	return &types.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func gpsAxis(x *exif.Exif, field, refField exif.FieldName) (float64, error) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, err
	}
	if tag.Format() != tiff.RatVal || tag.Count < 3 {
		return 0, fmt.Errorf("%s: expected 3 rationals", field)
	}

	var dms [3]float64
	for i := range dms {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, err
		}
		if den == 0 {
			return 0, fmt.Errorf("%s: zero denominator", field)
		}
		dms[i] = float64(num) / float64(den)
	}

	ref := ""
	if refTag, err := x.Get(refField); err == nil {
		ref, _ = refTag.StringVal()
	}

	return DMSToDecimal(dms[0], dms[1], dms[2], ref), nil
}

// DMSToDecimal converts degrees/minutes/seconds to signed decimal degrees.
// A reference of S or W negates the result.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	v := deg + min/60 + sec/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -v
	}
	return v
}

// recognizedImage reports whether head starts with a container the EXIF
// reader understands or knowingly carries no EXIF.
func recognizedImage(head []byte) bool {
	switch {
	case bytes.HasPrefix(head, []byte{0xFF, 0xD8}):
		return true
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return true
	case bytes.HasPrefix(head, []byte("\x89PNG\r\n\x1a\n")):
		return true
	case bytes.HasPrefix(head, []byte("GIF8")):
		return true
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return true
	case len(head) >= 12 && string(head[4:8]) == "ftyp":
		return true
	}
	return false
}

func noExif(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "failed to find exif intro marker")
}
