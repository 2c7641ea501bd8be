package metadata

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// XMLSidecarSource reads camera clip descriptors (<base>M01.XML) written
// next to video files by Sony cameras.
type XMLSidecarSource struct{}

func NewXMLSidecarSource() *XMLSidecarSource {
	return &XMLSidecarSource{}
}

type nonRealTimeMeta struct {
	XMLName      xml.Name `xml:"NonRealTimeMeta"`
	CreationDate struct {
		Value string `xml:"value,attr"`
	} `xml:"CreationDate"`
}

func (s *XMLSidecarSource) Name() string { return "XML" }

func (s *XMLSidecarSource) Resolve(_ context.Context, asset types.Asset) Finding {
	if !asset.IsVideo {
		return Finding{}
	}

	xmlPath := findXMLPath(asset.Path)
	if xmlPath == "" {
		return Finding{}
	}

	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return Finding{}
	}

	displayPath := filepath.Join(filepath.Dir(asset.DisplayPath()), filepath.Base(xmlPath))
	corrupt := func(detail string) Finding {
		return Finding{Anomalies: []types.AnomalyRecord{
			anomaly(types.AnomalyCorruptedMetadata, displayPath, detail),
		}}
	}

	var meta nonRealTimeMeta
	if err := xml.Unmarshal(data, &meta); err != nil {
		return corrupt("failed to parse XML: " + err.Error())
	}
	if meta.CreationDate.Value == "" {
		return Finding{}
	}

	t, err := time.Parse(time.RFC3339, meta.CreationDate.Value)
	if err != nil {
		return corrupt("invalid date format: " + err.Error())
	}

	return found(t, nil, "XML:CreationDate")
}

func findXMLPath(videoPath string) string {
	dir := filepath.Dir(videoPath)
	basename := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	for _, name := range []string{basename + "M01.XML", basename + "M01.xml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
