package metadata

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

type stubProbe struct {
	t     time.Time
	err   error
	calls int
}

func (p *stubProbe) Name() string { return "stub" }

func (p *stubProbe) CreationTime(ctx context.Context, path string) (time.Time, error) {
	p.calls++
	return p.t, p.err
}

// TestVideoSource_UsesProbeForVideosOnly는 동영상에만 probe를 쓰는지 검증합니다.
func TestVideoSource_UsesProbeForVideosOnly(t *testing.T) {
	probe := &stubProbe{t: time.Date(2023, 4, 5, 10, 0, 0, 0, time.UTC)}
	src := NewVideoSource(probe, time.Second, nil)

	if f := src.Resolve(context.Background(), types.Asset{Path: "/a.jpg"}); f.Found {
		t.Fatal("expected stills to be skipped")
	}
	if probe.calls != 0 {
		t.Fatalf("expected no probe call for stills, got %d", probe.calls)
	}

	f := src.Resolve(context.Background(), types.Asset{Path: "/a.mp4", IsVideo: true})
	if !f.Found {
		t.Fatal("expected probe result to be used")
	}
	if !f.Moment.Timestamp.Equal(probe.t) {
		t.Fatalf("unexpected timestamp: %v", *f.Moment.Timestamp)
	}
	if f.Moment.Coordinate != nil {
		t.Fatal("video source must never supply a coordinate")
	}
	if f.Moment.Source != "Video:stub" {
		t.Fatalf("unexpected source: %s", f.Moment.Source)
	}
}

// TestVideoSource_ProbeFailureRecordsNoAnomaly는 probe 실패 처리를 검증합니다.
func TestVideoSource_ProbeFailureRecordsNoAnomaly(t *testing.T) {
	// probe 프로세스 오류나 creation_time 부재는 이상 기록 없이 넘어가야 한다.
	for _, err := range []error{errors.New("exit status 1"), ErrNoCreationTime} {
		src := NewVideoSource(&stubProbe{err: err}, time.Second, nil)
		f := src.Resolve(context.Background(), types.Asset{Path: "/a.mov", IsVideo: true})
		if f.Found || len(f.Anomalies) != 0 {
			t.Fatalf("expected empty finding for %v, got %+v", err, f)
		}
	}
}

// TestParseCreationTime는 creation_time 형식 파싱을 검증합니다.
func TestParseCreationTime(t *testing.T) {
	want := time.Date(2023, 4, 5, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in string
		ok bool
	}{
		{"2023-04-05T12:30:00.000000Z", true},
		{"2023-04-05T12:30:00Z", true},
		{"2023-04-05T21:30:00+09:00", true},
		{"2023-04-05T12:30:00", true},
		{"2023-04-05 12:30:00", true},
		{"yesterday", false},
	}

	for _, tt := range tests {
		got, err := parseCreationTime(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("parseCreationTime(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && !got.Equal(want) {
			t.Errorf("parseCreationTime(%q) = %v, want %v", tt.in, got, want)
		}
	}
}

// TestNewProbe는 probe 선택 규칙을 검증합니다.
func TestNewProbe(t *testing.T) {
	if NewProbe(types.VideoProbeNone, "") != nil {
		t.Fatal("expected nil probe for none")
	}
	if _, ok := NewProbe(types.VideoProbeMP4, "").(*MP4Probe); !ok {
		t.Fatal("expected mp4 probe")
	}
	if p, ok := NewProbe(types.VideoProbeFFProbe, "/opt/ffprobe").(*FFProbe); !ok || p.Path != "/opt/ffprobe" {
		t.Fatal("expected ffprobe with explicit path")
	}
	// auto는 ffprobe를 찾지 못하면 내장 mp4 리더로 대체해야 한다.
	if _, ok := NewProbe(types.VideoProbeAuto, "/definitely/not/ffprobe").(*MP4Probe); !ok {
		t.Fatal("expected auto to fall back to mp4 probe")
	}
}

// TestMP4Probe_ReadsMvhdCreationTime는 mvhd 박스의 생성 시간 읽기를 검증합니다.
func TestMP4Probe_ReadsMvhdCreationTime(t *testing.T) {
	want := time.Date(2022, 1, 1, 9, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeMinimalMP4(t, path, uint32(uint64(want.Unix())+isoBMFFEpochOffset))

	got, err := (&MP4Probe{}).CreationTime(context.Background(), path)
	if err != nil {
		t.Fatalf("creation time failed: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("unexpected creation time: %v", got)
	}
}

// TestMP4Probe_ZeroCreationTime는 생성 시간이 비어 있는 mvhd를 검증합니다.
func TestMP4Probe_ZeroCreationTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeMinimalMP4(t, path, 0)

	if _, err := (&MP4Probe{}).CreationTime(context.Background(), path); !errors.Is(err, ErrNoCreationTime) {
		t.Fatalf("expected ErrNoCreationTime, got %v", err)
	}
}

func writeMinimalMP4(t *testing.T, path string, creation uint32) {
	t.Helper()

	box := func(typ string, payload []byte) []byte {
		b := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
		b = append(b, typ...)
		return append(b, payload...)
	}

	ftyp := box("ftyp", []byte("isom\x00\x00\x02\x00isom"))

	mvhd := make([]byte, 0, 100)
	mvhd = append(mvhd, 0, 0, 0, 0) // version + flags
	mvhd = binary.BigEndian.AppendUint32(mvhd, creation)
	mvhd = binary.BigEndian.AppendUint32(mvhd, creation)
	mvhd = binary.BigEndian.AppendUint32(mvhd, 1000) // timescale
	mvhd = binary.BigEndian.AppendUint32(mvhd, 0)    // duration
	mvhd = binary.BigEndian.AppendUint32(mvhd, 0x00010000)
	mvhd = binary.BigEndian.AppendUint16(mvhd, 0x0100)
	mvhd = append(mvhd, make([]byte, 2+8)...)
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		mvhd = binary.BigEndian.AppendUint32(mvhd, v)
	}
	mvhd = append(mvhd, make([]byte, 24)...)
	mvhd = binary.BigEndian.AppendUint32(mvhd, 2)

	data := append(ftyp, box("moov", box("mvhd", mvhd))...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write mp4: %v", err)
	}
}
