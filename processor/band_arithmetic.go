package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/nci/ndelta/utils"
)

// NormalizedDifferenceExpr is the band expression evaluated by
// ExpressionStrategy with A and B bound to the two input bands.
const NormalizedDifferenceExpr = "(A - B) / (A + B)"

// IndexStrategy computes a normalized difference index raster from
// two bands of one image.
type IndexStrategy interface {
	NormalizedDifference(img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error)
}

// ContextIndexStrategy is implemented by strategies that block on
// I/O and can be cancelled per call.
type ContextIndexStrategy interface {
	IndexStrategy
	NormalizedDifferenceContext(ctx context.Context, img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error)
}

// normalizedDifference runs s under ctx when s supports it.
func normalizedDifference(ctx context.Context, s IndexStrategy, img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error) {
	if cs, ok := s.(ContextIndexStrategy); ok {
		return cs.NormalizedDifferenceContext(ctx, img, bandA, bandB)
	}
	return s.NormalizedDifference(img, bandA, bandB)
}

// NewIndexStrategy returns the local strategy registered under name.
func NewIndexStrategy(name string) (IndexStrategy, error) {
	switch name {
	case "", "expression":
		return NewExpressionStrategy()
	case "explicit":
		return &ExplicitStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown index strategy: %s", name)
	}
}

// ExpressionStrategy evaluates a band expression per pixel. A and B
// are bound to the two requested bands; any other variable names a
// band of the image.
type ExpressionStrategy struct {
	expr *utils.BandExpressions
}

func NewExpressionStrategy() (*ExpressionStrategy, error) {
	return NewCustomExpressionStrategy(NormalizedDifferenceExpr)
}

func NewCustomExpressionStrategy(expr string) (*ExpressionStrategy, error) {
	parsed, err := utils.ParseBandExpressions([]string{expr})
	if err != nil {
		return nil, err
	}
	return &ExpressionStrategy{expr: parsed}, nil
}

func (s *ExpressionStrategy) NormalizedDifference(img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error) {
	bindings := make(map[string]string, len(s.expr.VarList))
	for _, v := range s.expr.VarList {
		bindings[v] = v
	}
	bindings["A"] = bandA
	bindings["B"] = bandB
	return evaluate(img, s.expr.Expressions[0], s.expr.ExprText[0], bindings)
}

// EvaluateBandExpression evaluates an arbitrary band math expression
// over the image. vars maps expression variables to band names;
// variables absent from vars are looked up as band names directly.
func EvaluateBandExpression(img *RasterImage, expr string, vars map[string]string) (*utils.Float64Raster, error) {
	parsed, err := utils.ParseBandExpressions([]string{expr})
	if err != nil {
		return nil, err
	}
	bindings := make(map[string]string, len(parsed.VarList))
	for _, v := range parsed.VarList {
		if band, ok := vars[v]; ok {
			bindings[v] = band
		} else {
			bindings[v] = v
		}
	}
	return evaluate(img, parsed.Expressions[0], parsed.ExprText[0], bindings)
}

func evaluate(img *RasterImage, expr *govaluate.EvaluableExpression, exprText string, bindings map[string]string) (*utils.Float64Raster, error) {
	bands := make(map[string]*Band, len(bindings))
	for variable, name := range bindings {
		band, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		if len(band.Data) != img.Grid.Size() {
			return nil, fmt.Errorf("band %s of image %s does not match its grid", name, img.ID)
		}
		bands[variable] = band
	}

	out := utils.NewFloat64Raster(img.Grid, exprText)
	parameters := make(map[string]interface{}, len(bands))
	for i := range out.Data {
		noData := false
		for variable, band := range bands {
			val := band.Value(i)
			if math.IsNaN(val) {
				noData = true
				break
			}
			parameters[variable] = val
		}
		if noData {
			out.Data[i] = math.NaN()
			continue
		}

		result, err := expr.Evaluate(parameters)
		if err != nil {
			return nil, fmt.Errorf("eval '%v' error: %v", exprText, err)
		}
		val, ok := result.(float64)
		if !ok {
			return nil, fmt.Errorf("failed to cast eval result '%v' to float64, %v", result, exprText)
		}
		out.Data[i] = finite(val)
	}
	return out, nil
}

// ExplicitStrategy computes the index with whole raster operations.
type ExplicitStrategy struct{}

func (s *ExplicitStrategy) NormalizedDifference(img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error) {
	a, err := bandRaster(img, bandA)
	if err != nil {
		return nil, err
	}
	b, err := bandRaster(img, bandB)
	if err != nil {
		return nil, err
	}

	diff, err := SubtractBands(a, b)
	if err != nil {
		return nil, err
	}
	sum, err := AddBands(a, b)
	if err != nil {
		return nil, err
	}
	nd, err := DivideRasters(diff, sum)
	if err != nil {
		return nil, err
	}
	nd.NameSpace = fmt.Sprintf("nd(%s,%s)", bandA, bandB)
	return nd, nil
}

func bandRaster(img *RasterImage, name string) (*utils.Float64Raster, error) {
	band, err := img.Band(name)
	if err != nil {
		return nil, err
	}
	if len(band.Data) != img.Grid.Size() {
		return nil, fmt.Errorf("band %s of image %s does not match its grid", name, img.ID)
	}
	out := utils.NewFloat64Raster(img.Grid, name)
	for i := range out.Data {
		out.Data[i] = band.Value(i)
	}
	return out, nil
}

func SubtractBands(a, b *utils.Float64Raster) (*utils.Float64Raster, error) {
	return pixelwise("subtract", a, b, func(x, y float64) float64 { return x - y })
}

func AddBands(a, b *utils.Float64Raster) (*utils.Float64Raster, error) {
	return pixelwise("add", a, b, func(x, y float64) float64 { return x + y })
}

// DivideRasters divides num by den. Zero denominators and non finite
// quotients yield nodata.
func DivideRasters(num, den *utils.Float64Raster) (*utils.Float64Raster, error) {
	return pixelwise("divide", num, den, func(x, y float64) float64 {
		if y == 0 {
			return math.NaN()
		}
		return x / y
	})
}

func pixelwise(op string, a, b *utils.Float64Raster, f func(x, y float64) float64) (*utils.Float64Raster, error) {
	if err := checkGrids(op, a.Grid, b.Grid); err != nil {
		return nil, err
	}
	if len(a.Data) != a.Size() || len(b.Data) != b.Size() {
		return nil, fmt.Errorf("%s: raster data does not match its grid", op)
	}
	out := utils.NewFloat64Raster(a.Grid, op)
	for i := range out.Data {
		x, y := a.Data[i], b.Data[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = finite(f(x, y))
	}
	return out, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
