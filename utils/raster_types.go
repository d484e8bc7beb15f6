package utils

import (
	"fmt"
	"math"
)

type Raster interface {
	GetNoData() float64
	GetGrid() Grid
}

// Grid describes the pixel dimensions and spatial alignment of a
// raster. GeoTransform follows the GDAL convention
// (x0, xRes, 0, y0, 0, yRes).
type Grid struct {
	Width        int       `json:"width" yaml:"width"`
	Height       int       `json:"height" yaml:"height"`
	CRS          string    `json:"crs,omitempty" yaml:"crs"`
	GeoTransform []float64 `json:"geo_transform,omitempty" yaml:"geo_transform"`
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

// Equal reports whether two grids are identical in dimensions,
// projection and geotransform.
func (g Grid) Equal(o Grid) bool {
	if g.Width != o.Width || g.Height != o.Height || g.CRS != o.CRS {
		return false
	}
	if len(g.GeoTransform) != len(o.GeoTransform) {
		return false
	}
	for i := range g.GeoTransform {
		if g.GeoTransform[i] != o.GeoTransform[i] {
			return false
		}
	}
	return true
}

// Center returns the geographic centre of the grid. Grids without a
// geotransform are centred on their pixel extent.
func (g Grid) Center() (float64, float64) {
	if len(g.GeoTransform) != 6 {
		return float64(g.Width) / 2, float64(g.Height) / 2
	}
	gt := g.GeoTransform
	x := gt[0] + gt[1]*float64(g.Width)/2 + gt[2]*float64(g.Height)/2
	y := gt[3] + gt[4]*float64(g.Width)/2 + gt[5]*float64(g.Height)/2
	return x, y
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d %s %v", g.Width, g.Height, g.CRS, g.GeoTransform)
}

type ByteRaster struct {
	Grid
	Data      []uint8
	NoData    float64
	NameSpace string
}

func (br *ByteRaster) GetNoData() float64 {
	return br.NoData
}

func (br *ByteRaster) GetGrid() Grid {
	return br.Grid
}

// Float64Raster is a single band floating point raster. Missing
// values are always stored as NaN.
type Float64Raster struct {
	Grid
	Data      []float64
	NameSpace string
}

func NewFloat64Raster(grid Grid, nameSpace string) *Float64Raster {
	return &Float64Raster{Grid: grid, Data: make([]float64, grid.Size()), NameSpace: nameSpace}
}

func (f64 *Float64Raster) GetNoData() float64 {
	return math.NaN()
}

func (f64 *Float64Raster) GetGrid() Grid {
	return f64.Grid
}

func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// RasterStats summarises the valid pixels of a Float64Raster.
type RasterStats struct {
	Pixels       int     `json:"pixels"`
	NoDataPixels int     `json:"nodata_pixels"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
}

func (f64 *Float64Raster) Stats() RasterStats {
	st := RasterStats{Pixels: len(f64.Data), Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, v := range f64.Data {
		if IsNoData(v) {
			st.NoDataPixels++
			continue
		}
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
		sum += v
	}

	valid := st.Pixels - st.NoDataPixels
	if valid == 0 {
		st.Min, st.Max = 0, 0
		return st
	}
	st.Mean = sum / float64(valid)
	return st
}
