package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nci/ndelta/utils"
)

// spyCollection records the list limits requested by the selector.
type spyCollection struct {
	SliceCollection
	limits []int
}

func (sc *spyCollection) ToOrderedList(ctx context.Context, limit int) ([]*RasterImage, error) {
	sc.limits = append(sc.limits, limit)
	return sc.SliceCollection.ToOrderedList(ctx, limit)
}

type staticService struct {
	col *spyCollection
}

func (ss *staticService) QueryCollection(ctx context.Context, datasetID string, point *utils.Point, start, end time.Time) (ImageCollection, error) {
	return ss.col, nil
}

func threeImages() SliceCollection {
	return SliceCollection{
		testImage("a", date("2014-07-05"), 12.5, nil),
		testImage("b", date("2014-07-21"), 3, nil),
		testImage("c", date("2014-07-28"), 3, nil),
	}
}

func selectQuery(mode SelectMode) *SelectQuery {
	return &SelectQuery{
		Dataset: "landsat8_toa",
		Point:   &utils.Point{X: 98.5265, Y: 20.4715},
		Start:   date("2014-07-01"),
		End:     date("2014-07-30"),
		Mode:    mode,
	}
}

func TestSelectModes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		mode SelectMode
		exp  string
	}{
		{First(), "a"},
		{Indexed(0), "a"},
		{Indexed(2), "c"},
		{LeastCloudy(), "b"},
	}
	for _, tc := range tests {
		svc := &staticService{col: &spyCollection{SliceCollection: threeImages()}}
		img, err := Select(ctx, svc, selectQuery(tc.mode))
		if err != nil {
			t.Errorf("%v: %v", tc.mode, err)
			continue
		}
		if img.ID != tc.exp {
			t.Errorf("%v: expected image %s, got %s", tc.mode, tc.exp, img.ID)
		}
	}
}

func TestSelectIndexedListCap(t *testing.T) {
	ctx := context.Background()
	svc := &staticService{col: &spyCollection{SliceCollection: threeImages()}}

	Select(ctx, svc, selectQuery(Indexed(1)))
	Select(ctx, svc, selectQuery(Indexed(70)))
	limits := svc.col.limits
	if len(limits) != 2 || limits[0] != DefaultListCap || limits[1] != 71 {
		t.Errorf("unexpected list limits %v", limits)
	}
}

func TestSelectEmptyCollection(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []SelectMode{First(), Indexed(0), Indexed(3), LeastCloudy()} {
		svc := &staticService{col: &spyCollection{}}
		img, err := Select(ctx, svc, selectQuery(mode))
		if img != nil || !errors.Is(err, ErrEmptyCollection) {
			t.Errorf("%v: expected ErrEmptyCollection, got %v, %v", mode, img, err)
		}
		var ece *EmptyCollectionError
		if !errors.As(err, &ece) || ece.Dataset != "landsat8_toa" {
			t.Errorf("%v: expected EmptyCollectionError with context, got %v", mode, err)
		}
	}
}

func TestSelectIndexOutOfRange(t *testing.T) {
	svc := &staticService{col: &spyCollection{SliceCollection: threeImages()}}
	_, err := Select(context.Background(), svc, selectQuery(Indexed(3)))
	var iie *ImageIndexError
	if !errors.As(err, &iie) || iie.Index != 3 || iie.Count != 3 {
		t.Errorf("expected ImageIndexError, got %v", err)
	}
	if errors.Is(err, ErrEmptyCollection) {
		t.Errorf("an out of range index is not an empty collection")
	}
}

func TestSelectInvalidRange(t *testing.T) {
	svc := &staticService{col: &spyCollection{SliceCollection: threeImages()}}
	q := selectQuery(First())
	q.Start, q.End = q.End, q.Start
	_, err := Select(context.Background(), svc, q)
	if err == nil || errors.Is(err, ErrEmptyCollection) {
		t.Errorf("reversed date ranges must be rejected, got %v", err)
	}
}

func TestSelectZeroWidthRange(t *testing.T) {
	for _, mode := range []SelectMode{First(), Indexed(0), LeastCloudy()} {
		svc := &staticService{col: &spyCollection{SliceCollection: threeImages()}}
		q := selectQuery(mode)
		q.End = q.Start
		img, err := Select(context.Background(), svc, q)
		if img != nil || !errors.Is(err, ErrEmptyCollection) {
			t.Errorf("%v: expected ErrEmptyCollection for [d, d), got %v, %v", mode, img, err)
		}
	}
}

func TestSelectLeastCloudyWholeCollection(t *testing.T) {
	var col SliceCollection
	start := date("2014-01-01")
	for i := 0; i < 3*DefaultListCap; i++ {
		cloud := 40.0
		if i == 2*DefaultListCap {
			cloud = 0.5
		}
		col = append(col, testImage(fmt.Sprintf("img%03d", i), start.AddDate(0, 0, i), cloud, nil))
	}
	svc := &staticService{col: &spyCollection{SliceCollection: col}}
	q := selectQuery(LeastCloudy())
	q.Start, q.End = start, start.AddDate(1, 0, 0)

	img, err := Select(context.Background(), svc, q)
	if err != nil {
		t.Fatal(err)
	}
	if img.ID != "img100" {
		t.Errorf("expected img100, got %s", img.ID)
	}
	if len(svc.col.limits) != 0 {
		t.Errorf("least cloudy must not cap the list, got limits %v", svc.col.limits)
	}
}

func TestParseSelectMode(t *testing.T) {
	tests := map[string]string{
		"":             "first",
		"first":        "first",
		"index:0":      "index:0",
		"index:12":     "index:12",
		"least_cloudy": "least_cloudy",
	}
	for in, exp := range tests {
		mode, err := ParseSelectMode(in)
		if err != nil || mode.String() != exp {
			t.Errorf("ParseSelectMode(%q) = %v, %v", in, mode, err)
		}
	}
	for _, in := range []string{"last", "index:", "index:-1"} {
		if _, err := ParseSelectMode(in); err == nil {
			t.Errorf("ParseSelectMode(%q) must fail", in)
		}
	}
}
