package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	geo "github.com/nci/geometry"
)

// Point is a WGS84 location, X being the longitude and Y the latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) WKT() string {
	return fmt.Sprintf("POINT (%f %f)", p.X, p.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%f, %f)", p.X, p.Y)
}

// BBoxContains reports whether a bbox (xMin, yMin, xMax, yMax)
// contains the point. Bounds are inclusive.
func BBoxContains(bbox []float64, p Point) bool {
	if len(bbox) != 4 {
		return false
	}
	return bbox[0] <= p.X && p.X <= bbox[2] && bbox[1] <= p.Y && p.Y <= bbox[3]
}

// ParsePointFeature decodes a GeoJSON Feature whose geometry must be a
// Point.
func ParsePointFeature(raw []byte) (Point, error) {
	var feat geo.Feature
	err := json.Unmarshal(raw, &feat)
	if err != nil {
		return Point{}, fmt.Errorf("Problem unmarshalling GeoJSON feature: %v", err)
	}

	switch feat.Geometry.(type) {
	case *geo.Point:
	default:
		return Point{}, fmt.Errorf("Geometry not supported. Only Features containing a Point are accepted")
	}

	var coords struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	}
	err = json.Unmarshal(raw, &coords)
	if err != nil {
		return Point{}, fmt.Errorf("Problem unmarshalling point coordinates: %v", err)
	}
	return pointFromCoords(coords.Geometry.Coordinates)
}

// ParsePoint accepts either a [lon, lat] pair or a GeoJSON Point
// Feature.
func ParsePoint(raw json.RawMessage) (Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Point{}, fmt.Errorf("empty point")
	}

	if raw[0] == '[' {
		var coords []float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return Point{}, fmt.Errorf("Problem unmarshalling point coordinates: %v", err)
		}
		return pointFromCoords(coords)
	}
	return ParsePointFeature(raw)
}

func pointFromCoords(coords []float64) (Point, error) {
	if len(coords) != 2 {
		return Point{}, fmt.Errorf("a point needs exactly 2 coordinates, got %d", len(coords))
	}
	p := Point{X: coords[0], Y: coords[1]}
	if p.X < -180 || p.X > 180 || p.Y < -90 || p.Y > 90 {
		return Point{}, fmt.Errorf("point %v out of WGS84 bounds", p)
	}
	return p, nil
}
