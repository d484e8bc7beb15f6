package processor

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/nci/ndelta/utils"
)

const testScenes = "../testdata/scenes"

var chiangMai = &utils.Point{X: 98.5265, Y: 20.4715}

func loadTestCatalog(t *testing.T) *MemoryCatalog {
	t.Helper()
	mc, err := LoadCatalog(testScenes, 4)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return mc
}

func collectIDs(t *testing.T, col ImageCollection) []string {
	t.Helper()
	images, err := col.ToOrderedList(context.Background(), DefaultListCap)
	if err != nil {
		t.Fatal(err)
	}
	ids := []string{}
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids
}

func TestLoadCatalog(t *testing.T) {
	mc := loadTestCatalog(t)

	expected := []string{"landsat8_toa", "s5p_no2", "srtm90"}
	if !reflect.DeepEqual(mc.Datasets(), expected) {
		t.Errorf("expected datasets %v, got %v", expected, mc.Datasets())
	}

	img, err := mc.LoadImage(context.Background(), "landsat8_toa")
	if err != nil {
		t.Fatal(err)
	}
	if img.ID != "LC08_130045_20170713" {
		t.Errorf("expected the latest image, got %s", img.ID)
	}
	b3, err := img.Band("B3")
	if err != nil {
		t.Fatal(err)
	}
	if !b3.HasNoData || b3.NoData != -9999 {
		t.Errorf("nodata of B3 not loaded: %+v", b3)
	}
}

func TestMemoryCatalogQuery(t *testing.T) {
	mc := loadTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		point      *utils.Point
		start, end string
		exp        []string
	}{
		{chiangMai, "2014-07-01", "2014-07-30", []string{"LC08_130045_20140705", "LC08_130045_20140721"}},
		{chiangMai, "2014-07-01", "2018-01-01", []string{"LC08_130045_20140705", "LC08_130045_20140721", "LC08_130045_20170713"}},
		{chiangMai, "2015-01-01", "2016-01-01", []string{}},
		{&utils.Point{X: 120, Y: 20}, "2014-07-01", "2018-01-01", []string{}},
		// footprint bounds are inclusive
		{&utils.Point{X: 97.9, Y: 21.6}, "2014-07-01", "2014-07-30", []string{"LC08_130045_20140705", "LC08_130045_20140721"}},
		{nil, "2017-01-01", "2018-01-01", []string{"LC08_130045_20170713"}},
	}
	for i, tc := range tests {
		col, err := mc.QueryCollection(ctx, "landsat8_toa", tc.point, date(tc.start), date(tc.end))
		if err != nil {
			t.Errorf("query %d: %v", i, err)
			continue
		}
		ids := collectIDs(t, col)
		if !reflect.DeepEqual(ids, tc.exp) {
			t.Errorf("query %d: expected %v, got %v", i, tc.exp, ids)
		}
	}
}

func TestMemoryCatalogHalfOpenRange(t *testing.T) {
	mc := loadTestCatalog(t)
	ctx := context.Background()
	acquired := time.Date(2014, 7, 5, 3, 55, 12, 0, time.UTC)

	col, err := mc.QueryCollection(ctx, "landsat8_toa", chiangMai, acquired, acquired.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if ids := collectIDs(t, col); len(ids) != 1 || ids[0] != "LC08_130045_20140705" {
		t.Errorf("range start must be inclusive, got %v", ids)
	}

	col, err = mc.QueryCollection(ctx, "landsat8_toa", chiangMai, acquired.Add(-time.Hour), acquired)
	if err != nil {
		t.Fatal(err)
	}
	if ids := collectIDs(t, col); len(ids) != 0 {
		t.Errorf("range end must be exclusive, got %v", ids)
	}
}

func TestMemoryCatalogErrors(t *testing.T) {
	mc := loadTestCatalog(t)
	ctx := context.Background()

	if _, err := mc.QueryCollection(ctx, "sentinel2", chiangMai, date("2014-07-01"), date("2014-07-30")); err == nil {
		t.Errorf("unknown datasets must fail")
	}
	if _, err := mc.LoadImage(ctx, "sentinel2"); err == nil {
		t.Errorf("unknown datasets must fail")
	}

	img, _ := mc.LoadImage(ctx, "srtm90")
	if err := mc.Add(img); err == nil {
		t.Errorf("duplicated images must be rejected")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := mc.QueryCollection(cancelled, "landsat8_toa", chiangMai, date("2014-07-01"), date("2014-07-30")); err == nil {
		t.Errorf("cancelled queries must fail")
	}
}

func TestMemoryCatalogOrder(t *testing.T) {
	ts := date("2020-02-05")
	mc, err := NewMemoryCatalog([]*RasterImage{
		testImage("c", ts.Add(time.Hour), 0, nil),
		testImage("b", ts, 0, nil),
		testImage("a", ts, 0, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	col, err := mc.QueryCollection(context.Background(), "landsat8_toa", nil, ts, ts.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if ids := collectIDs(t, col); !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("images must be ordered by time then id, got %v", ids)
	}
}
