package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/nci/ndelta/utils"
)

var ErrEmptyCollection = errors.New("no image matches the collection filter")

type EmptyCollectionError struct {
	Dataset string
	Point   *utils.Point
	Start   time.Time
	End     time.Time
}

func (e *EmptyCollectionError) Error() string {
	point := "anywhere"
	if e.Point != nil {
		point = e.Point.String()
	}
	return fmt.Sprintf("%v: dataset %s at %s in [%s, %s)", ErrEmptyCollection, e.Dataset, point,
		e.Start.Format(utils.ISODateFormat), e.End.Format(utils.ISODateFormat))
}

func (e *EmptyCollectionError) Is(target error) bool {
	return target == ErrEmptyCollection
}

type ImageIndexError struct {
	Dataset string
	Index   int
	Count   int
}

func (e *ImageIndexError) Error() string {
	return fmt.Sprintf("image index %d out of range: dataset %s matched %d images", e.Index, e.Dataset, e.Count)
}

type BandNotFoundError struct {
	Band    string
	ImageID string
}

func (e *BandNotFoundError) Error() string {
	return fmt.Sprintf("band %s not found in image %s", e.Band, e.ImageID)
}

type GridMismatchError struct {
	Op    string
	Left  utils.Grid
	Right utils.Grid
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("%s: grid mismatch %v vs %v", e.Op, e.Left, e.Right)
}

func checkGrids(op string, left, right utils.Grid) error {
	if !left.Equal(right) {
		return &GridMismatchError{Op: op, Left: left, Right: right}
	}
	return nil
}
