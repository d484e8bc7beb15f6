package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nci/ndelta/crawl/extractor"
	"github.com/nci/ndelta/utils"
)

// ImageFromScene converts a crawled scene into an image.
func ImageFromScene(s *extractor.Scene) (*RasterImage, error) {
	img := &RasterImage{
		ID:         s.ID,
		Dataset:    s.Dataset,
		TimeStamp:  s.Acquired,
		CloudCover: s.CloudCover,
		Footprint:  s.Footprint,
		Grid:       s.Grid,
		Bands:      make(map[string]*Band, len(s.Bands)),
	}
	for _, sb := range s.Bands {
		band := &Band{Name: sb.Name, Data: sb.Data}
		if sb.NoData != nil {
			band.NoData = *sb.NoData
			band.HasNoData = true
		}
		img.Bands[sb.Name] = band
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// MemoryCatalog serves collection queries from images held in
// memory. Images of a dataset are kept in acquisition order.
type MemoryCatalog struct {
	datasets map[string][]*RasterImage
	lock     sync.RWMutex
}

func NewMemoryCatalog(images []*RasterImage) (*MemoryCatalog, error) {
	mc := &MemoryCatalog{datasets: make(map[string][]*RasterImage)}
	for _, img := range images {
		if err := mc.Add(img); err != nil {
			return nil, err
		}
	}
	return mc, nil
}

// LoadCatalog crawls dir for scene documents and indexes them.
func LoadCatalog(dir string, conc int) (*MemoryCatalog, error) {
	scenes, err := extractor.CrawlScenes(dir, conc, "")
	if err != nil {
		return nil, err
	}
	images := make([]*RasterImage, 0, len(scenes))
	for _, s := range scenes {
		img, err := ImageFromScene(s)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return NewMemoryCatalog(images)
}

func (mc *MemoryCatalog) Add(img *RasterImage) error {
	if len(img.Dataset) == 0 {
		return fmt.Errorf("image %s has no dataset", img.ID)
	}
	if err := img.Validate(); err != nil {
		return err
	}

	mc.lock.Lock()
	defer mc.lock.Unlock()
	images := mc.datasets[img.Dataset]
	for _, other := range images {
		if other.ID == img.ID {
			return fmt.Errorf("duplicated image %s in dataset %s", img.ID, img.Dataset)
		}
	}
	images = append(images, img)
	sort.SliceStable(images, func(i, j int) bool {
		if !images[i].TimeStamp.Equal(images[j].TimeStamp) {
			return images[i].TimeStamp.Before(images[j].TimeStamp)
		}
		return images[i].ID < images[j].ID
	})
	mc.datasets[img.Dataset] = images
	return nil
}

func (mc *MemoryCatalog) Datasets() []string {
	mc.lock.RLock()
	defer mc.lock.RUnlock()
	var names []string
	for name := range mc.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (mc *MemoryCatalog) QueryCollection(ctx context.Context, datasetID string, point *utils.Point, start, end time.Time) (ImageCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc.lock.RLock()
	defer mc.lock.RUnlock()
	images, ok := mc.datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", datasetID)
	}

	var col SliceCollection
	for _, img := range images {
		if img.Matches(point, start, end) {
			col = append(col, img)
		}
	}
	return col, nil
}

// LoadImage returns the latest image of a dataset.
func (mc *MemoryCatalog) LoadImage(ctx context.Context, datasetID string) (*RasterImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc.lock.RLock()
	defer mc.lock.RUnlock()
	images := mc.datasets[datasetID]
	if len(images) == 0 {
		return nil, fmt.Errorf("unknown dataset: %s", datasetID)
	}
	return images[len(images)-1], nil
}
