package processor

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/nci/ndelta/utils"
)

// ApplyMask returns a copy of r where every pixel whose mask value
// is 0 is set to nodata.
func ApplyMask(r *utils.Float64Raster, mask *utils.ByteRaster) (*utils.Float64Raster, error) {
	if err := checkGrids("mask", r.Grid, mask.Grid); err != nil {
		return nil, err
	}
	if len(r.Data) != r.Size() || len(mask.Data) != mask.Size() {
		return nil, fmt.Errorf("mask: raster data does not match its grid")
	}

	out := utils.NewFloat64Raster(r.Grid, r.NameSpace)
	for i, val := range r.Data {
		if mask.Data[i] == 0 {
			out.Data[i] = math.NaN()
		} else {
			out.Data[i] = val
		}
	}
	return out, nil
}

// ValidityMask is 1 where the band holds data and 0 where it is
// nodata.
func ValidityMask(img *RasterImage, bandName string) (*utils.ByteRaster, error) {
	band, err := img.Band(bandName)
	if err != nil {
		return nil, err
	}
	if len(band.Data) != img.Grid.Size() {
		return nil, fmt.Errorf("band %s of image %s does not match its grid", bandName, img.ID)
	}

	out := &utils.ByteRaster{Grid: img.Grid, Data: make([]uint8, len(band.Data)), NoData: 0, NameSpace: bandName}
	for i := range band.Data {
		if !math.IsNaN(band.Value(i)) {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// ComputeBitMask evaluates the bit tests of a quality band. Pixels
// flagged by the mask, and nodata pixels, are 0 in the result.
func ComputeBitMask(img *RasterImage, mask *utils.Mask) (*utils.ByteRaster, error) {
	if mask == nil {
		return nil, fmt.Errorf("no mask definition")
	}
	band, err := img.Band(mask.Band)
	if err != nil {
		return nil, err
	}
	if len(band.Data) != img.Grid.Size() {
		return nil, fmt.Errorf("band %s of image %s does not match its grid", mask.Band, img.ID)
	}

	var maskValue int64
	var filters, values []int64
	if len(mask.Value) > 0 {
		maskValue, err = strconv.ParseInt(mask.Value, 2, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mask value %q: %v", mask.Value, err)
		}
	} else {
		if len(mask.BitTests) == 0 {
			return nil, fmt.Errorf("Please specify either mask.Value or mask.BitTests")
		} else if len(mask.BitTests)%2 != 0 {
			return nil, fmt.Errorf("The entries in mask.BitTests must be in pairs")
		}
		for j := 0; j < len(mask.BitTests); j += 2 {
			filter, err := strconv.ParseInt(mask.BitTests[j], 2, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid mask bit test %q: %v", mask.BitTests[j], err)
			}
			value, err := strconv.ParseInt(mask.BitTests[j+1], 2, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid mask bit test %q: %v", mask.BitTests[j+1], err)
			}
			filters = append(filters, filter)
			values = append(values, value)
		}
	}

	out := &utils.ByteRaster{Grid: img.Grid, Data: make([]uint8, len(band.Data)), NoData: 0, NameSpace: mask.Band}
	for i := range band.Data {
		v := band.Value(i)
		if math.IsNaN(v) {
			continue
		}
		val := int64(v)
		flagged := false
		if len(mask.Value) > 0 {
			flagged = val&maskValue > 0
		} else {
			for j := range filters {
				if val&filters[j] == values[j] {
					flagged = true
					break
				}
			}
		}
		if !flagged {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// DatasetMaskSource derives masks from the single image of a time
// invariant dataset. BitMask takes precedence over Band.
type DatasetMaskSource struct {
	Images  StaticImageSource
	Band    string
	BitMask *utils.Mask
}

func (ms *DatasetMaskSource) LoadMask(ctx context.Context, datasetID string) (*utils.ByteRaster, error) {
	img, err := ms.Images.LoadImage(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if ms.BitMask != nil {
		return ComputeBitMask(img, ms.BitMask)
	}

	band := ms.Band
	if len(band) == 0 {
		if len(img.Bands) != 1 {
			return nil, fmt.Errorf("mask dataset %s has %d bands, please specify mask_band", datasetID, len(img.Bands))
		}
		for name := range img.Bands {
			band = name
		}
	}
	return ValidityMask(img, band)
}
