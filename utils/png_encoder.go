package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// EncodePNG renders a scaled raster through a 256 entry colour ramp.
// 0xFF pixels are left transparent.
func EncodePNG(raster *ByteRaster, ramp []color.RGBA) ([]byte, error) {
	if len(ramp) < 255 {
		return nil, fmt.Errorf("colour ramp needs at least 255 entries, got %d", len(ramp))
	}
	if len(raster.Data) != raster.Width*raster.Height {
		return nil, fmt.Errorf("raster data length %d does not match grid %dx%d", len(raster.Data), raster.Width, raster.Height)
	}

	tile := image.NewRGBA(image.Rect(0, 0, raster.Width, raster.Height))
	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			v := raster.Data[y*raster.Width+x]
			if v != 0xFF {
				tile.SetRGBA(x, y, ramp[v])
			}
		}
	}

	buf := new(bytes.Buffer)
	err := png.Encode(buf, tile)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
