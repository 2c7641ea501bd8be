package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// TestXMLSidecarSource_Resolve는 XML 사이드카의 CreationDate 파싱을 검증합니다.
func TestXMLSidecarSource_Resolve(t *testing.T) {
	tmpDir := t.TempDir()

	xmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<NonRealTimeMeta xmlns="urn:schemas-professionalDisc:nonRealTimeMeta:ver.2.00">
	<CreationDate value="2025-12-31T19:47:25+09:00"/>
</NonRealTimeMeta>`

	if err := os.WriteFile(filepath.Join(tmpDir, "C0005M01.XML"), []byte(xmlContent), 0644); err != nil {
		t.Fatal(err)
	}
	videoPath := filepath.Join(tmpDir, "C0005.MP4")
	if err := os.WriteFile(videoPath, []byte("fake video"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewXMLSidecarSource().Resolve(context.Background(), types.Asset{
		Path:      videoPath,
		Name:      "C0005.MP4",
		Extension: "mp4",
		IsVideo:   true,
	})

	if !f.Found {
		t.Fatalf("expected capture time, got %+v", f)
	}
	expected := time.Date(2025, 12, 31, 19, 47, 25, 0, time.FixedZone("", 9*3600))
	if !f.Moment.Timestamp.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, *f.Moment.Timestamp)
	}
	if f.Moment.Source != "XML:CreationDate" {
		t.Errorf("expected XML:CreationDate source, got %s", f.Moment.Source)
	}
}

// TestXMLSidecarSource_NoXMLFile는 XML 파일이 없을 때를 검증합니다.
func TestXMLSidecarSource_NoXMLFile(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "C0005.MP4")
	if err := os.WriteFile(videoPath, []byte("fake video"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewXMLSidecarSource().Resolve(context.Background(), types.Asset{Path: videoPath, IsVideo: true})
	if f.Found || len(f.Anomalies) != 0 {
		t.Fatalf("expected empty finding, got %+v", f)
	}
}

// TestXMLSidecarSource_LowercaseExtensionAndBrokenDate는 소문자 확장자와 잘못된 날짜를 검증합니다.
func TestXMLSidecarSource_LowercaseExtensionAndBrokenDate(t *testing.T) {
	// M01.xml도 찾아야 하고, 날짜 형식이 틀리면 corrupted-metadata 이상을 남겨야 한다.
	tmpDir := t.TempDir()
	xmlContent := `<NonRealTimeMeta><CreationDate value="31/12/2025"/></NonRealTimeMeta>`
	if err := os.WriteFile(filepath.Join(tmpDir, "C0006M01.xml"), []byte(xmlContent), 0644); err != nil {
		t.Fatal(err)
	}
	videoPath := filepath.Join(tmpDir, "C0006.MP4")

	f := NewXMLSidecarSource().Resolve(context.Background(), types.Asset{Path: videoPath, IsVideo: true})
	if f.Found {
		t.Fatal("expected no timestamp")
	}
	if len(f.Anomalies) != 1 || f.Anomalies[0].Category != types.AnomalyCorruptedMetadata {
		t.Fatalf("expected corrupted-metadata anomaly, got %+v", f.Anomalies)
	}
}

// TestXMLSidecarSource_IgnoresStills는 사진 파일을 건너뛰는지 검증합니다.
func TestXMLSidecarSource_IgnoresStills(t *testing.T) {
	f := NewXMLSidecarSource().Resolve(context.Background(), types.Asset{Path: "/x/a.jpg"})
	if f.Found {
		t.Fatal("expected stills to be ignored")
	}
}
