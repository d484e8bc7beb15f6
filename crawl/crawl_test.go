package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	extr "github.com/nci/ndelta/crawl/extractor"
	"github.com/nci/ndelta/processor"
)

func stringIn(str string, strs []string) bool {
	for _, s := range strs {
		if str == s {
			return true
		}
	}
	return false
}

func crawlTestScenes(test *testing.T) []*extr.Scene {
	scenes, err := extr.CrawlScenes("../testdata/scenes", 4, "")
	if err != nil {
		test.Fatalf("CrawlScenes: %v", err)
	}
	return scenes
}

func TestPrintScenes(test *testing.T) {
	scenes := crawlTestScenes(test)

	var buf bytes.Buffer
	if err := printScenes(&buf, scenes); err != nil {
		test.Fatal(err)
	}

	var ids []string
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		scene := &extr.Scene{}
		if err := json.Unmarshal(sc.Bytes(), scene); err != nil {
			test.Fatalf("invalid record %q: %v", sc.Text(), err)
		}
		ids = append(ids, scene.ID)
	}

	if len(ids) != len(scenes) {
		test.Errorf("expected %d records, got %d", len(scenes), len(ids))
	}
	for _, id := range []string{"LC08_130045_20140705", "S5P_OFFL_L3_NO2_20200219", "srtm90_v4"} {
		if !stringIn(id, ids) {
			test.Errorf("scene %s not printed", id)
		}
	}
}

func TestRegisterScenes(test *testing.T) {
	scenes := crawlTestScenes(test)

	var lock sync.Mutex
	var put []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		img := &processor.RasterImage{}
		if err := json.NewDecoder(r.Body).Decode(img); err != nil || img.Dataset == "srtm90" {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		lock.Lock()
		put = append(put, img.Dataset+"/"+img.ID)
		lock.Unlock()
	}))
	defer ts.Close()

	n, err := registerScenes(context.Background(), processor.NewMASCollection(ts.URL), scenes, false)
	if err == nil {
		test.Errorf("the rejected scene must fail the registration")
	}
	// scenes are sorted by dataset so srtm90 comes last
	if n != len(scenes)-1 || len(put) != n {
		test.Errorf("expected %d scenes registered, got %d (%v)", len(scenes)-1, n, put)
	}
	if !stringIn("landsat8_toa/LC08_130045_20170713", put) {
		test.Errorf("unexpected registrations %v", put)
	}
}
