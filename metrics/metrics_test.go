package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestToJSON(t *testing.T) {
	m := NewMetricsCollector(nil)
	m.Info.Product = "ndvi_change_2014_2017"
	m.AddSelection(&SelectionInfo{
		Period:  "2014",
		Dataset: "landsat8_toa",
		Mode:    "index:0",
		ImageID: "LC08_130045_20140705",
		URL:     URLInfo{RawURL: "http://localhost:8888/landsat8_toa?intersects&limit=50&time=2014-07-01T00%3A00%3A00.000Z"},
	})
	m.AddSelection(&SelectionInfo{Period: "2017", Mode: "first"})

	js, err := m.Info.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	decoded := &MetricsInfo{}
	if err = json.Unmarshal([]byte(js), decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Geometry != "POINT EMPTY" || decoded.Status != "ok" {
		t.Errorf("unexpected defaults %q, %q", decoded.Geometry, decoded.Status)
	}
	u := decoded.Selections[0].URL
	if u.Host != "localhost:8888" || u.Path != "/landsat8_toa" {
		t.Errorf("unexpected url info %+v", u)
	}
	if u.Query["limit"] != "50" || u.Query["time"] != "2014-07-01T00:00:00.000Z" {
		t.Errorf("unexpected query %v", u.Query)
	}
	if _, ok := u.Query["intersects"]; !ok {
		t.Errorf("the intersects operation must be kept in %v", u.Query)
	}
	if decoded.Selections[1].URL.Query != nil {
		t.Errorf("selections without url must not be normalised")
	}

	m.Info.Status = ""
	m.Info.Error = "no image matches the collection filter"
	js, _ = m.Info.ToJSON()
	if !strings.Contains(js, `"status":"error"`) {
		t.Errorf("failed requests must be flagged: %s", js)
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir, 0, 0, false)

	const records = 20
	for i := 0; i < records; i++ {
		m := NewMetricsCollector(logger)
		m.Info.Product = "ndvi_change_2014_2017"
		m.Info.ReqDuration = time.Duration(i) * time.Millisecond
		m.Log()
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	lines := 0
	for i := 0; i < defaultLogWriters; i++ {
		f, err := os.Open(filepath.Join(dir, fmt.Sprintf("delta%d", i)))
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			info := &MetricsInfo{}
			if err := json.Unmarshal(sc.Bytes(), info); err != nil {
				t.Errorf("invalid record %q: %v", sc.Text(), err)
			}
			lines++
		}
		f.Close()
	}
	if lines != records {
		t.Errorf("expected %d records, got %d", records, lines)
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir, 1, 2, false)
	for i := 0; i < 10; i++ {
		NewMetricsCollector(logger).Log()
	}
	logger.Close()

	files, err := filepath.Glob(filepath.Join(dir, "delta*"))
	if err != nil {
		t.Fatal(err)
	}
	// one live file and at most two rotated files per writer
	if len(files) == 0 || len(files) > defaultLogWriters*3 {
		t.Errorf("unexpected log files %v", files)
	}
}
