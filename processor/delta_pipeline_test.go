package processor

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nci/ndelta/metrics"
	"github.com/nci/ndelta/utils"
)

type memLogger struct {
	infos []*metrics.MetricsInfo
}

func (l *memLogger) Log(info *metrics.MetricsInfo) {
	l.infos = append(l.infos, info)
}

func (l *memLogger) Close() error {
	return nil
}

func ndviRequest(earlierMode, laterMode SelectMode) *DeltaRequest {
	return &DeltaRequest{
		Product: "ndvi_change_2014_2017",
		Dataset: "landsat8_toa",
		Point:   chiangMai,
		Earlier: Period{Title: "2014", Start: date("2014-07-01"), End: date("2014-07-30"), Mode: earlierMode},
		Later:   Period{Title: "2017", Start: date("2017-07-01"), End: date("2017-07-30"), Mode: laterMode},
		BandA:   "B4",
		BandB:   "B3",
	}
}

func checkPixels(t *testing.T, name string, got []float64, exp []float64) {
	t.Helper()
	if len(got) != len(exp) {
		t.Fatalf("%s: expected %d pixels, got %d", name, len(exp), len(got))
	}
	for i := range exp {
		if !closeTo(got[i], exp[i]) {
			t.Errorf("%s: pixel %d: expected %v, got %v", name, i, exp[i], got[i])
		}
	}
}

func TestDeltaPipeline(t *testing.T) {
	mc := loadTestCatalog(t)
	nan := math.NaN()

	for _, name := range []string{"expression", "explicit"} {
		strategy, err := NewIndexStrategy(name)
		if err != nil {
			t.Fatal(err)
		}
		dp := InitDeltaPipeline(context.Background(), mc, &DatasetMaskSource{Images: mc}, strategy, 2)

		req := ndviRequest(Indexed(0), First())
		req.MaskDataset = "srtm90"
		res, err := dp.Process(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		if res.Earlier.Image.ID != "LC08_130045_20140705" || res.Later.Image.ID != "LC08_130045_20170713" {
			t.Errorf("%s: unexpected images %s, %s", name, res.Earlier.Image.ID, res.Later.Image.ID)
		}
		checkPixels(t, name+" earlier", res.Earlier.Index.Data, []float64{1.0 / 3, 0.5, nan, 0, nan, 2.0 / 3})
		checkPixels(t, name+" later", res.Later.Index.Data, []float64{2.0 / 3, 1.0 / 3, 0.5, 0, 0.5, 0.5})
		checkPixels(t, name+" delta", res.Delta.Data, []float64{1.0 / 3, -1.0 / 6, nan, 0, nan, -1.0 / 6})
		checkPixels(t, name+" masked", res.Masked.Data, []float64{1.0 / 3, -1.0 / 6, nan, 0, nan, nan})

		if !res.Masked.Grid.Equal(res.Earlier.Image.Grid) {
			t.Errorf("%s: output grid %v differs from the image grid", name, res.Masked.Grid)
		}
	}
}

func TestDeltaPipelineWithoutMask(t *testing.T) {
	mc := loadTestCatalog(t)
	dp := InitDeltaPipeline(context.Background(), mc, nil, &ExplicitStrategy{}, 1)

	res, err := dp.Process(ndviRequest(LeastCloudy(), First()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Earlier.Image.ID != "LC08_130045_20140721" {
		t.Errorf("expected the least cloudy image, got %s", res.Earlier.Image.ID)
	}
	if res.Masked != res.Delta {
		t.Errorf("the delta must be the output when no mask is requested")
	}

	req := ndviRequest(First(), First())
	req.MaskDataset = "srtm90"
	if _, err = dp.Process(req); err == nil {
		t.Errorf("masks requested without a mask source must fail")
	}
}

func TestDeltaPipelineEmptyPeriod(t *testing.T) {
	mc := loadTestCatalog(t)
	dp := InitDeltaPipeline(context.Background(), mc, nil, &ExplicitStrategy{}, 2)

	req := ndviRequest(First(), First())
	req.Later.Start, req.Later.End = date("2016-07-01"), date("2016-07-30")
	res, err := dp.Process(req)
	if res != nil || !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("expected ErrEmptyCollection, got %v, %v", res, err)
	}

	req = ndviRequest(Indexed(5), First())
	_, err = dp.Process(req)
	var iie *ImageIndexError
	if !errors.As(err, &iie) {
		t.Errorf("expected ImageIndexError, got %v", err)
	}

	req = ndviRequest(First(), First())
	req.BandB = "B5"
	_, err = dp.Process(req)
	var bnf *BandNotFoundError
	if !errors.As(err, &bnf) {
		t.Errorf("expected BandNotFoundError, got %v", err)
	}
}

func TestDeltaPipelineMetrics(t *testing.T) {
	mc := loadTestCatalog(t)
	logger := &memLogger{}
	dp := InitDeltaPipeline(context.Background(), mc, &DatasetMaskSource{Images: mc}, mustExpression(t), 2)
	dp.Metrics = metrics.NewMetricsCollector(logger)

	req := ndviRequest(Indexed(0), First())
	req.MaskDataset = "srtm90"
	if _, err := dp.Process(req); err != nil {
		t.Fatal(err)
	}
	dp.Metrics.Log()

	if len(logger.infos) != 1 {
		t.Fatalf("expected one metrics record, got %d", len(logger.infos))
	}
	info := logger.infos[0]
	if info.Product != req.Product || info.Kind != utils.ProductDelta {
		t.Errorf("unexpected product %s (%s)", info.Product, info.Kind)
	}
	if len(info.Selections) != 2 || info.Index.NumCalls != 2 || info.Index.Strategy != "expression" {
		t.Errorf("unexpected selections %d, index %+v", len(info.Selections), info.Index)
	}
	if info.Result == nil || info.Result.NoDataPixels != 3 {
		t.Errorf("unexpected result info %+v", info.Result)
	}

	js, err := info.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js, `"status":"ok"`) || !strings.Contains(js, "POINT") {
		t.Errorf("unexpected metrics record %s", js)
	}
}

func TestDeltaPipelineCancelled(t *testing.T) {
	mc := loadTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dp := InitDeltaPipeline(ctx, mc, nil, &ExplicitStrategy{}, 2)
	if _, err := dp.Process(ndviRequest(First(), First())); err == nil {
		t.Errorf("cancelled runs must fail")
	}
}

func TestCompositePipeline(t *testing.T) {
	mc := loadTestCatalog(t)
	point := &utils.Point{X: 100.5, Y: 13.75}

	cp := InitCompositePipeline(context.Background(), mc, nil)
	cp.Metrics = metrics.NewMetricsCollector(nil)
	res, err := cp.Process(&CompositeRequest{
		Product: "no2_thailand_feb",
		Dataset: "s5p_no2",
		Point:   point,
		Band:    "NO2_column_number_density",
		Periods: []Period{
			{Title: "Feb 2019", Start: date("2019-02-01"), End: date("2019-03-01")},
			{Title: "Feb 2020", Start: date("2020-02-01"), End: date("2020-03-01")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(res.Periods))
	}
	for _, pr := range res.Periods {
		if len(pr.Images) != 2 {
			t.Errorf("%s: expected 2 images, got %d", pr.Period.Title, len(pr.Images))
		}
		for i, v := range pr.Composite.Data {
			for _, img := range pr.Images {
				if b := img.Bands["NO2_column_number_density"].Value(i); !math.IsNaN(b) && b > v {
					t.Errorf("%s: pixel %d: composite %v below image value %v", pr.Period.Title, i, v, b)
				}
			}
		}
	}
	if len(cp.Metrics.Info.Selections) != 2 || cp.Metrics.Info.Selections[0].NumImages != 2 {
		t.Errorf("unexpected selection metrics %+v", cp.Metrics.Info.Selections)
	}

	_, err = cp.Process(&CompositeRequest{
		Dataset: "s5p_no2",
		Point:   point,
		Band:    "NO2_column_number_density",
		Periods: []Period{{Title: "Feb 2021", Start: date("2021-02-01"), End: date("2021-03-01")}},
	})
	if !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("expected ErrEmptyCollection, got %v", err)
	}

	_, err = cp.Process(&CompositeRequest{
		Dataset: "s5p_no2",
		Point:   point,
		Band:    "NO2_column_number_density",
		Periods: []Period{{Title: "zero width", Start: date("2020-02-01"), End: date("2020-02-01")}},
	})
	if !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("expected ErrEmptyCollection for a zero width period, got %v", err)
	}

	_, err = cp.Process(&CompositeRequest{
		Dataset: "s5p_no2",
		Point:   point,
		Band:    "NO2_column_number_density",
		Periods: []Period{{Title: "reversed", Start: date("2020-03-01"), End: date("2020-02-01")}},
	})
	if err == nil || errors.Is(err, ErrEmptyCollection) {
		t.Errorf("a reversed period must be rejected, got %v", err)
	}
}

func TestMaxComposite(t *testing.T) {
	nan := math.NaN()
	img1 := testImage("a", date("2019-02-03"), 0, map[string][]float64{"NO2": {1, -1}})
	img2 := testImage("b", date("2019-02-17"), 0, map[string][]float64{"NO2": {0.5, -1}})
	img1.Bands["NO2"].NoData, img1.Bands["NO2"].HasNoData = -1, true
	img2.Bands["NO2"].NoData, img2.Bands["NO2"].HasNoData = -1, true

	r, err := MaxComposite([]*RasterImage{img1, img2}, "NO2")
	if err != nil {
		t.Fatal(err)
	}
	checkPixels(t, "composite", r.Data, []float64{1, nan})

	if _, err = MaxComposite(nil, "NO2"); !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("expected ErrEmptyCollection, got %v", err)
	}
}
