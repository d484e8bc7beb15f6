package processor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nci/ndelta/utils"
)

// Band is one named layer of a RasterImage. Pixels equal to NoData
// are treated as missing when HasNoData is set.
type Band struct {
	Name      string    `json:"name"`
	Data      []float64 `json:"data"`
	NoData    float64   `json:"nodata"`
	HasNoData bool      `json:"has_nodata"`
}

// Value returns the pixel value or NaN for nodata pixels.
func (b *Band) Value(i int) float64 {
	v := b.Data[i]
	if b.HasNoData && v == b.NoData {
		return math.NaN()
	}
	return v
}

// RasterImage is an immutable set of bands sharing one grid.
type RasterImage struct {
	ID         string           `json:"id"`
	Dataset    string           `json:"dataset"`
	TimeStamp  time.Time        `json:"timestamp"`
	CloudCover float64          `json:"cloud_cover"`
	Footprint  []float64        `json:"footprint"`
	Grid       utils.Grid       `json:"grid"`
	Bands      map[string]*Band `json:"bands"`
}

func (img *RasterImage) Band(name string) (*Band, error) {
	band, ok := img.Bands[name]
	if !ok || band == nil {
		return nil, &BandNotFoundError{Band: name, ImageID: img.ID}
	}
	return band, nil
}

// Validate checks that every band covers the image grid.
func (img *RasterImage) Validate() error {
	if img.Grid.Width <= 0 || img.Grid.Height <= 0 {
		return fmt.Errorf("image %s: invalid grid %v", img.ID, img.Grid)
	}
	if len(img.Footprint) != 4 {
		return fmt.Errorf("image %s: footprint must be a bbox of 4 values", img.ID)
	}
	for name, band := range img.Bands {
		if band == nil || len(band.Data) != img.Grid.Size() {
			return fmt.Errorf("image %s: band %s does not match grid %dx%d", img.ID, name, img.Grid.Width, img.Grid.Height)
		}
	}
	return nil
}

// Matches is the spatiotemporal filter of a collection query: the
// footprint contains the point and the acquisition time lies in
// [start, end). A nil point disables the spatial test.
func (img *RasterImage) Matches(point *utils.Point, start, end time.Time) bool {
	if point != nil && !utils.BBoxContains(img.Footprint, *point) {
		return false
	}
	return !img.TimeStamp.Before(start) && img.TimeStamp.Before(end)
}

// ImageCollection is the result of a collection query in its native
// order.
type ImageCollection interface {
	First(ctx context.Context) (*RasterImage, error)
	ToOrderedList(ctx context.Context, limit int) ([]*RasterImage, error)
	// ToList materialises the whole collection.
	ToList(ctx context.Context) ([]*RasterImage, error)
}

// CollectionService is the imagery collection collaborator.
type CollectionService interface {
	QueryCollection(ctx context.Context, datasetID string, point *utils.Point, start, end time.Time) (ImageCollection, error)
}

// MaskSource loads a land/water style mask raster.
type MaskSource interface {
	LoadMask(ctx context.Context, datasetID string) (*utils.ByteRaster, error)
}

// StaticImageSource returns the single image of a time invariant
// dataset such as a DEM.
type StaticImageSource interface {
	LoadImage(ctx context.Context, datasetID string) (*RasterImage, error)
}

// SliceCollection is an already filtered collection held in memory.
type SliceCollection []*RasterImage

// First returns nil without error when the collection is empty.
func (sc SliceCollection) First(ctx context.Context) (*RasterImage, error) {
	if len(sc) == 0 {
		return nil, nil
	}
	return sc[0], nil
}

func (sc SliceCollection) ToList(ctx context.Context) ([]*RasterImage, error) {
	return sc.ToOrderedList(ctx, len(sc))
}

func (sc SliceCollection) ToOrderedList(ctx context.Context, limit int) ([]*RasterImage, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative list limit %d", limit)
	}
	if len(sc) < limit {
		limit = len(sc)
	}
	out := make([]*RasterImage, limit)
	copy(out, sc[:limit])
	return out, nil
}
