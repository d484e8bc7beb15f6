package utils

import (
	"fmt"
)

// ScaleParams maps the [Min, Max] value range of a layer style onto
// the 0..254 byte range. 0xFF is reserved for nodata.
type ScaleParams struct {
	Min float64
	Max float64
}

func scale(r Raster, params ScaleParams) (*ByteRaster, error) {
	if !(params.Max > params.Min) {
		return nil, fmt.Errorf("invalid scale range [%v, %v]", params.Min, params.Max)
	}

	switch t := r.(type) {
	case *ByteRaster:
		out := &ByteRaster{Grid: t.Grid, NoData: 0xFF, Data: make([]uint8, len(t.Data)), NameSpace: t.NameSpace}
		noData := uint8(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = 0xFF
			} else {
				out.Data[i] = scaleValue(float64(value), params)
			}
		}
		return out, nil

	case *Float64Raster:
		out := &ByteRaster{Grid: t.Grid, NoData: 0xFF, Data: make([]uint8, len(t.Data)), NameSpace: t.NameSpace}
		for i, value := range t.Data {
			if IsNoData(value) {
				out.Data[i] = 0xFF
			} else {
				out.Data[i] = scaleValue(value, params)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("Raster type not implemented")
	}
}

func scaleValue(value float64, params ScaleParams) uint8 {
	if value < params.Min {
		value = params.Min
	}
	if value > params.Max {
		value = params.Max
	}
	return uint8((value - params.Min) * 254.0 / (params.Max - params.Min))
}

func Scale(rs []Raster, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))

	for i, r := range rs {
		br, err := scale(r, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}
