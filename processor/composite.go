package processor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nci/ndelta/metrics"
	"github.com/nci/ndelta/utils"
)

// CompositeListCap bounds how many images of one period enter a
// composite.
const CompositeListCap = 500

// MaxComposite returns the per pixel maximum of one band over all
// images. Nodata pixels are ignored; a pixel with no data in every
// image stays nodata.
func MaxComposite(images []*RasterImage, bandName string) (*utils.Float64Raster, error) {
	if len(images) == 0 {
		return nil, ErrEmptyCollection
	}

	out := utils.NewFloat64Raster(images[0].Grid, fmt.Sprintf("max(%s)", bandName))
	for i := range out.Data {
		out.Data[i] = math.NaN()
	}

	for _, img := range images {
		if err := checkGrids("composite", out.Grid, img.Grid); err != nil {
			return nil, err
		}
		band, err := img.Band(bandName)
		if err != nil {
			return nil, err
		}
		if len(band.Data) != out.Size() {
			return nil, fmt.Errorf("band %s of image %s does not match its grid", bandName, img.ID)
		}
		for i := range out.Data {
			v := band.Value(i)
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(out.Data[i]) || v > out.Data[i] {
				out.Data[i] = v
			}
		}
	}
	return out, nil
}

type CompositeRequest struct {
	Product     string
	Dataset     string
	Point       *utils.Point
	Band        string
	Periods     []Period
	MaskDataset string
}

type CompositePeriodResult struct {
	Period    Period
	Images    []*RasterImage
	Composite *utils.Float64Raster
	Masked    *utils.Float64Raster
}

type CompositeResult struct {
	Periods []*CompositePeriodResult
}

type CompositePipeline struct {
	Context    context.Context
	Collection CollectionService
	Masks      MaskSource
	Metrics    *metrics.MetricsCollector
}

func InitCompositePipeline(ctx context.Context, collection CollectionService, masks MaskSource) *CompositePipeline {
	return &CompositePipeline{
		Context:    ctx,
		Collection: collection,
		Masks:      masks,
	}
}

func (cp *CompositePipeline) Process(req *CompositeRequest) (*CompositeResult, error) {
	t0 := time.Now()
	if cp.Metrics != nil {
		cp.Metrics.Info.ReqTime = t0.Format(utils.ISOFormat)
		cp.Metrics.Info.Product = req.Product
		cp.Metrics.Info.Kind = utils.ProductComposite
		if req.Point != nil {
			cp.Metrics.Info.Geometry = req.Point.WKT()
		}
		cp.Metrics.Info.Index.Strategy = "max_composite"
	}

	res, err := cp.process(req)
	if cp.Metrics != nil {
		cp.Metrics.Info.ReqDuration = time.Since(t0)
		if err != nil {
			cp.Metrics.Info.Error = err.Error()
		} else if len(res.Periods) > 0 {
			cp.Metrics.Info.Result = rasterInfo(res.Periods[len(res.Periods)-1].Masked)
		}
	}
	return res, err
}

func (cp *CompositePipeline) process(req *CompositeRequest) (*CompositeResult, error) {
	if len(req.Periods) == 0 {
		return nil, fmt.Errorf("no period to composite")
	}

	var mask *utils.ByteRaster
	if len(req.MaskDataset) > 0 {
		if cp.Masks == nil {
			return nil, fmt.Errorf("mask dataset %s requested without a mask source", req.MaskDataset)
		}
		var err error
		mask, err = cp.Masks.LoadMask(cp.Context, req.MaskDataset)
		if err != nil {
			return nil, err
		}
	}

	res := &CompositeResult{}
	for _, period := range req.Periods {
		if period.End.Before(period.Start) {
			return nil, fmt.Errorf("invalid date range [%s, %s)", period.Start.Format(utils.ISOFormat), period.End.Format(utils.ISOFormat))
		}
		if period.End.Equal(period.Start) {
			return nil, &EmptyCollectionError{Dataset: req.Dataset, Point: req.Point, Start: period.Start, End: period.End}
		}

		t1 := time.Now()
		col, err := cp.Collection.QueryCollection(cp.Context, req.Dataset, req.Point, period.Start, period.End)
		if err != nil {
			return nil, err
		}
		images, err := col.ToOrderedList(cp.Context, CompositeListCap)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, &EmptyCollectionError{Dataset: req.Dataset, Point: req.Point, Start: period.Start, End: period.End}
		}

		if cp.Metrics != nil {
			cp.Metrics.AddSelection(&metrics.SelectionInfo{
				Period:    period.Title,
				Dataset:   req.Dataset,
				Mode:      "all",
				NumImages: len(images),
				Duration:  time.Since(t1),
				URL:       metrics.URLInfo{RawURL: queryURL(cp.Collection, req.Dataset, req.Point, period)},
			})
		}

		t2 := time.Now()
		composite, err := MaxComposite(images, req.Band)
		if err != nil {
			return nil, err
		}
		pr := &CompositePeriodResult{Period: period, Images: images, Composite: composite, Masked: composite}
		if mask != nil {
			pr.Masked, err = ApplyMask(composite, mask)
			if err != nil {
				return nil, err
			}
		}
		if cp.Metrics != nil {
			cp.Metrics.Info.Index.Duration += time.Since(t2)
			cp.Metrics.Info.Index.NumCalls++
		}
		res.Periods = append(res.Periods, pr)
	}
	return res, nil
}
