package utils

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

type Palette struct {
	Interpolate bool         `json:"interpolate"`
	Colours     []color.RGBA `json:"colours"`
}

// ColourList is an ordered sequence of colour codes. In JSON it is
// either a list of codes or a single comma separated string, which is
// how map layer styles are commonly written.
type ColourList []string

func (cl *ColourList) UnmarshalJSON(b []byte) error {
	var joined string
	if err := json.Unmarshal(b, &joined); err == nil {
		*cl = SplitColours(joined)
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("palette must be a list of colours or a comma separated string: %v", err)
	}
	*cl = list
	return nil
}

func SplitColours(joined string) ColourList {
	var out ColourList
	for _, c := range strings.Split(joined, ",") {
		c = strings.TrimSpace(c)
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

var namedColours = map[string]color.RGBA{
	"black":     {0x00, 0x00, 0x00, 0xff},
	"white":     {0xff, 0xff, 0xff, 0xff},
	"red":       {0xff, 0x00, 0x00, 0xff},
	"green":     {0x00, 0x80, 0x00, 0xff},
	"lime":      {0x00, 0xff, 0x00, 0xff},
	"blue":      {0x00, 0x00, 0xff, 0xff},
	"lightblue": {0xad, 0xd8, 0xe6, 0xff},
	"darkblue":  {0x00, 0x00, 0x8b, 0xff},
	"cyan":      {0x00, 0xff, 0xff, 0xff},
	"yellow":    {0xff, 0xff, 0x00, 0xff},
	"orange":    {0xff, 0xa5, 0x00, 0xff},
	"purple":    {0x80, 0x00, 0x80, 0xff},
	"magenta":   {0xff, 0x00, 0xff, 0xff},
	"brown":     {0xa5, 0x2a, 0x2a, 0xff},
	"grey":      {0x80, 0x80, 0x80, 0xff},
	"gray":      {0x80, 0x80, 0x80, 0xff},
}

// ParseColour accepts RRGGBB, #RRGGBB or a colour name.
func ParseColour(code string) (color.RGBA, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if named, ok := namedColours[c]; ok {
		return named, nil
	}

	c = strings.TrimPrefix(c, "#")
	if len(c) != 6 {
		return color.RGBA{}, fmt.Errorf("unknown colour code: %q", code)
	}
	v, err := strconv.ParseUint(c, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unknown colour code: %q", code)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

func ParsePalette(codes []string, interpolate bool) (*Palette, error) {
	if len(codes) < 2 {
		return nil, fmt.Errorf("The colour palette must contain at least 2 colours.")
	}
	palette := &Palette{Interpolate: interpolate, Colours: make([]color.RGBA, len(codes))}
	for i, code := range codes {
		c, err := ParseColour(code)
		if err != nil {
			return nil, err
		}
		palette.Colours[i] = c
	}
	return palette, nil
}

// InterpolateUint8 interpolates the value of a
// byte between two numbers 'a' and 'b' by
// especifying a length and a position 'i'
// along that length.
func InterpolateUint8(a, b uint8, i, sectionLength int) uint8 {
	return uint8(int(a) + i*(int(b)-int(a))/sectionLength)
}

// InterpolateColor returns an RGBA color where
// the R, G, B, and A components have been
// interpolated from the 'a' and 'b' colors
func InterpolateColor(a, b color.RGBA, i, sectionLength int) color.RGBA {
	return color.RGBA{InterpolateUint8(a.R, b.R, i, sectionLength),
		InterpolateUint8(a.G, b.G, i, sectionLength),
		InterpolateUint8(a.B, b.B, i, sectionLength),
		255}
}

// GradientRGBAPalette returns a palette of 256 colors
// creating an interpolation that goes though
// a list of provided colours.
func GradientRGBAPalette(palette *Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, fmt.Errorf("nil palette")
	}
	if len(palette.Colours) < 2 {
		return nil, fmt.Errorf("The colour palette must contain at least 2 colours.")
	}

	ramp := make([]color.RGBA, 256)

	bins := len(palette.Colours)
	if palette.Interpolate {
		bins--
	}
	sectionLength := 256 / bins
	bonus := 256 - (sectionLength * bins)
	bonusArr := make([]int, bins)
	for i := 0; i < bonus; i++ {
		bonusArr[i] = 1
	}

	index := 0
	for section := 0; section < bins; section++ {
		for i := 0; i < sectionLength+bonusArr[section]; i++ {
			if palette.Interpolate {
				ramp[index] = InterpolateColor(palette.Colours[section], palette.Colours[section+1], i, sectionLength)
			} else {
				ramp[index] = palette.Colours[section]
			}
			index++
		}
	}

	return ramp, nil
}
