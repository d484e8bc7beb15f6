package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/nci/ndelta/utils"
)

// DefaultListCap bounds how many images are materialised for
// indexed selection.
const DefaultListCap = 50

type selectKind int

const (
	selectFirst selectKind = iota
	selectIndexed
	selectLeastCloudy
)

type SelectMode struct {
	kind  selectKind
	index int
}

func First() SelectMode {
	return SelectMode{kind: selectFirst}
}

func Indexed(n int) SelectMode {
	return SelectMode{kind: selectIndexed, index: n}
}

func LeastCloudy() SelectMode {
	return SelectMode{kind: selectLeastCloudy}
}

func (m SelectMode) String() string {
	switch m.kind {
	case selectIndexed:
		return fmt.Sprintf("index:%d", m.index)
	case selectLeastCloudy:
		return "least_cloudy"
	default:
		return "first"
	}
}

// ParseSelectMode converts a configured selection string into a
// SelectMode.
func ParseSelectMode(selection string) (SelectMode, error) {
	kind, n, err := utils.ParseSelection(selection)
	if err != nil {
		return SelectMode{}, err
	}
	switch kind {
	case "index":
		return Indexed(n), nil
	case "least_cloudy":
		return LeastCloudy(), nil
	default:
		return First(), nil
	}
}

type SelectQuery struct {
	Dataset string
	Point   *utils.Point
	Start   time.Time
	End     time.Time
	Mode    SelectMode
}

// Select returns exactly one image of the collection filtered by
// point and [Start, End).
func Select(ctx context.Context, svc CollectionService, q *SelectQuery) (*RasterImage, error) {
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("invalid date range [%s, %s)", q.Start.Format(utils.ISOFormat), q.End.Format(utils.ISOFormat))
	}
	empty := &EmptyCollectionError{Dataset: q.Dataset, Point: q.Point, Start: q.Start, End: q.End}
	// [d, d) holds no acquisition
	if q.End.Equal(q.Start) {
		return nil, empty
	}

	col, err := svc.QueryCollection(ctx, q.Dataset, q.Point, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	switch q.Mode.kind {
	case selectFirst:
		img, err := col.First(ctx)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, empty
		}
		return img, nil

	case selectIndexed:
		if q.Mode.index < 0 {
			return nil, fmt.Errorf("negative image index %d", q.Mode.index)
		}
		listCap := DefaultListCap
		if q.Mode.index+1 > listCap {
			listCap = q.Mode.index + 1
		}
		images, err := col.ToOrderedList(ctx, listCap)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, empty
		}
		if q.Mode.index >= len(images) {
			return nil, &ImageIndexError{Dataset: q.Dataset, Index: q.Mode.index, Count: len(images)}
		}
		return images[q.Mode.index], nil

	case selectLeastCloudy:
		images, err := col.ToList(ctx)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, empty
		}
		best := images[0]
		for _, img := range images[1:] {
			if img.CloudCover < best.CloudCover {
				best = img
			}
		}
		return best, nil

	default:
		return nil, fmt.Errorf("unknown selection mode %v", q.Mode)
	}
}
