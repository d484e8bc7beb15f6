package processor

import (
	"github.com/nci/ndelta/utils"
)

// Difference returns later - earlier. A pixel missing in either
// raster is missing in the result.
func Difference(later, earlier *utils.Float64Raster) (*utils.Float64Raster, error) {
	delta, err := pixelwise("difference", later, earlier, func(x, y float64) float64 { return x - y })
	if err != nil {
		return nil, err
	}
	delta.NameSpace = "delta"
	return delta, nil
}
