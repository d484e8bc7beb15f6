package processor

import (
	"math"
	"time"

	"github.com/nci/ndelta/utils"
)

var testGrid = utils.Grid{Width: 2, Height: 1, CRS: "EPSG:4326", GeoTransform: []float64{98.4, 0.1, 0, 20.6, 0, -0.1}}

var testFootprint = []float64{97.9, 19.9, 99.9, 21.6}

func testImage(id string, ts time.Time, cloud float64, bands map[string][]float64) *RasterImage {
	img := &RasterImage{
		ID:         id,
		Dataset:    "landsat8_toa",
		TimeStamp:  ts,
		CloudCover: cloud,
		Footprint:  testFootprint,
		Grid:       testGrid,
		Bands:      make(map[string]*Band),
	}
	for name, data := range bands {
		img.Bands[name] = &Band{Name: name, Data: data}
	}
	return img
}

func date(s string) time.Time {
	t, err := utils.ParseISODate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func closeTo(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}
