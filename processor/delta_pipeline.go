package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nci/ndelta/metrics"
	"github.com/nci/ndelta/utils"
)

// Period is one acquisition window and the rule used to pick its
// image.
type Period struct {
	Title string
	Start time.Time
	End   time.Time
	Mode  SelectMode
}

func NewPeriod(p *utils.Period) (Period, error) {
	mode, err := ParseSelectMode(p.Selection)
	if err != nil {
		return Period{}, err
	}
	start, end := p.StartTime, p.EndTime
	if start.IsZero() || end.IsZero() {
		if start, err = utils.ParseISODate(p.Start); err != nil {
			return Period{}, err
		}
		if end, err = utils.ParseISODate(p.End); err != nil {
			return Period{}, err
		}
	}
	return Period{Title: p.Title, Start: start, End: end, Mode: mode}, nil
}

type DeltaRequest struct {
	Product     string
	Dataset     string
	Point       *utils.Point
	Earlier     Period
	Later       Period
	BandA       string
	BandB       string
	MaskDataset string
}

type PeriodResult struct {
	Period Period
	Image  *RasterImage
	Index  *utils.Float64Raster
}

// DeltaResult holds every intermediate artefact of a run. Masked is
// the terminal raster; it equals Delta when no mask was requested.
type DeltaResult struct {
	Earlier *PeriodResult
	Later   *PeriodResult
	Delta   *utils.Float64Raster
	Masked  *utils.Float64Raster
}

type DeltaPipeline struct {
	Context    context.Context
	Collection CollectionService
	Masks      MaskSource
	Strategy   IndexStrategy
	MaxConc    int
	Metrics    *metrics.MetricsCollector

	metricsLock sync.Mutex
}

func InitDeltaPipeline(ctx context.Context, collection CollectionService, masks MaskSource, strategy IndexStrategy, maxConc int) *DeltaPipeline {
	if maxConc <= 0 {
		maxConc = 2
	}
	return &DeltaPipeline{
		Context:    ctx,
		Collection: collection,
		Masks:      masks,
		Strategy:   strategy,
		MaxConc:    maxConc,
	}
}

func (dp *DeltaPipeline) Process(req *DeltaRequest) (*DeltaResult, error) {
	t0 := time.Now()
	if dp.Metrics != nil {
		dp.Metrics.Info.ReqTime = t0.Format(utils.ISOFormat)
		dp.Metrics.Info.Product = req.Product
		dp.Metrics.Info.Kind = utils.ProductDelta
		if req.Point != nil {
			dp.Metrics.Info.Geometry = req.Point.WKT()
		}
		dp.Metrics.Info.Index.Strategy = strategyName(dp.Strategy)
	}

	res, err := dp.process(req)
	if dp.Metrics != nil {
		dp.Metrics.Info.ReqDuration = time.Since(t0)
		if err != nil {
			dp.Metrics.Info.Error = err.Error()
		} else {
			dp.Metrics.Info.Result = rasterInfo(res.Masked)
		}
	}
	return res, err
}

func (dp *DeltaPipeline) process(req *DeltaRequest) (*DeltaResult, error) {
	if len(req.BandA) == 0 || len(req.BandB) == 0 {
		return nil, fmt.Errorf("both bands of the normalized difference must be given")
	}

	ctx, cancel := context.WithCancel(dp.Context)
	defer cancel()

	periods := []Period{req.Earlier, req.Later}
	results := make([]*PeriodResult, len(periods))
	errChan := make(chan error, len(periods))

	cLimiter := NewConcLimiter(dp.MaxConc)
	for ip := range periods {
		if err := cLimiter.Increase(ctx); err != nil {
			errChan <- err
			break
		}
		go func(idx int) {
			defer cLimiter.Decrease()
			if ctx.Err() != nil {
				return
			}
			pr, err := dp.indexPeriod(ctx, req, periods[idx])
			if err != nil {
				errChan <- err
				cancel()
				return
			}
			results[idx] = pr
		}(ip)
	}
	cLimiter.Wait()
	close(errChan)

	if err, ok := <-errChan; ok {
		return nil, err
	}
	if err := dp.Context.Err(); err != nil {
		return nil, err
	}

	delta, err := Difference(results[1].Index, results[0].Index)
	if err != nil {
		return nil, err
	}

	res := &DeltaResult{Earlier: results[0], Later: results[1], Delta: delta, Masked: delta}
	if len(req.MaskDataset) > 0 {
		if dp.Masks == nil {
			return nil, fmt.Errorf("mask dataset %s requested without a mask source", req.MaskDataset)
		}
		mask, err := dp.Masks.LoadMask(dp.Context, req.MaskDataset)
		if err != nil {
			return nil, err
		}
		res.Masked, err = ApplyMask(delta, mask)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (dp *DeltaPipeline) indexPeriod(ctx context.Context, req *DeltaRequest, period Period) (*PeriodResult, error) {
	t0 := time.Now()
	img, err := Select(ctx, dp.Collection, &SelectQuery{
		Dataset: req.Dataset,
		Point:   req.Point,
		Start:   period.Start,
		End:     period.End,
		Mode:    period.Mode,
	})
	if err != nil {
		return nil, err
	}
	selDuration := time.Since(t0)

	t1 := time.Now()
	index, err := normalizedDifference(ctx, dp.Strategy, img, req.BandA, req.BandB)
	if err != nil {
		return nil, err
	}

	if dp.Metrics != nil {
		dp.metricsLock.Lock()
		dp.Metrics.AddSelection(&metrics.SelectionInfo{
			Period:   period.Title,
			Dataset:  req.Dataset,
			Mode:     period.Mode.String(),
			ImageID:  img.ID,
			Acquired: img.TimeStamp.Format(utils.ISOFormat),
			Duration: selDuration,
			URL:      metrics.URLInfo{RawURL: queryURL(dp.Collection, req.Dataset, req.Point, period)},
		})
		dp.Metrics.Info.Index.Duration += time.Since(t1)
		dp.Metrics.Info.Index.NumCalls++
		if rs, ok := dp.Strategy.(*RemoteStrategy); ok {
			dp.Metrics.Info.Index.Worker = rs.LastWorker()
		}
		dp.metricsLock.Unlock()
	}

	return &PeriodResult{Period: period, Image: img, Index: index}, nil
}

func strategyName(s IndexStrategy) string {
	switch s.(type) {
	case *ExpressionStrategy:
		return "expression"
	case *ExplicitStrategy:
		return "explicit"
	case *RemoteStrategy:
		return "remote"
	default:
		return fmt.Sprintf("%T", s)
	}
}

// queryURL returns the MAS query of a period when the collection is
// served over HTTP.
func queryURL(svc CollectionService, dataset string, point *utils.Point, period Period) string {
	mc, ok := svc.(*MASCollection)
	if !ok {
		return ""
	}
	return mc.QueryURL(dataset, point, period.Start, period.End, 0)
}

func rasterInfo(r *utils.Float64Raster) *metrics.RasterInfo {
	if r == nil {
		return nil
	}
	st := r.Stats()
	return &metrics.RasterInfo{
		Width:        r.Width,
		Height:       r.Height,
		NoDataPixels: st.NoDataPixels,
		Min:          st.Min,
		Max:          st.Max,
		Mean:         st.Mean,
	}
}
