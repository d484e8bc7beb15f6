package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var EtcDir = "."
var DataDir = "."

type ServiceConfig struct {
	MASAddress    string   `json:"mas_address"`
	WorkerNodes   []string `json:"worker_nodes"`
	OutputDir     string   `json:"output_dir"`
	MetricsLogDir string   `json:"metrics_log_dir"`
	TemplateDir   string   `json:"template_dir"`
}

// Mask describes how a bit coded quality band flags pixels. Either
// Value (flag when any of its bits is set) or BitTests (pairs of
// filter, value; flag when val&filter == value) must be given.
type Mask struct {
	Band     string   `json:"band"`
	Value    string   `json:"value"`
	BitTests []string `json:"bit_tests"`
}

// Style is the map layer style handed to the renderer.
type Style struct {
	Min         float64    `json:"min"`
	Max         float64    `json:"max"`
	Palette     ColourList `json:"palette"`
	Interpolate *bool      `json:"interpolate"`
}

// Period is one acquisition window of a product. Start and End are
// ISO dates and the window is half open.
type Period struct {
	Title     string    `json:"title"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Selection string    `json:"selection"`
	StartTime time.Time `json:"-"`
	EndTime   time.Time `json:"-"`
}

const (
	ProductDelta     = "delta"
	ProductComposite = "composite"
)

// Product contains all the details needed to compute
// and render one index product
type Product struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Abstract    string          `json:"abstract"`
	Kind        string          `json:"kind"`
	Dataset     string          `json:"dataset"`
	Point       json.RawMessage `json:"point"`
	Location    *Point          `json:"-"`
	BandA       string          `json:"band_a"`
	BandB       string          `json:"band_b"`
	Band        string          `json:"band"`
	Expression  string          `json:"expression"`
	Periods     []Period        `json:"periods"`
	MaskDataset string          `json:"mask_dataset"`
	MaskBand    string          `json:"mask_band"`
	Mask        *Mask           `json:"mask"`
	Style       Style           `json:"style"`
	Zoom        int             `json:"zoom"`
}

// Config is the struct representing the configuration of the
// pipeline. It contains information about the metadata API
// and index workers as well as the list of products that
// can be computed.
type Config struct {
	ServiceConfig ServiceConfig `json:"service_config"`
	Products      []Product     `json:"products"`
}

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

// ISODateFormat is the date only form used by product periods.
const ISODateFormat = "2006-01-02"

const DefaultZoom = 9

// ParseISODate accepts either an ISO date or a full ISO timestamp.
func ParseISODate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{ISODateFormat, ISOFormat, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO date: %q", value)
}

var selectionRegexp = regexp.MustCompile(`^(first|least_cloudy|index:(\d+))$`)

// ParseSelection validates an image selection string: "first",
// "least_cloudy" or "index:N". An empty selection means "first".
func ParseSelection(selection string) (string, int, error) {
	selection = strings.TrimSpace(selection)
	if len(selection) == 0 {
		return "first", 0, nil
	}
	m := selectionRegexp.FindStringSubmatch(selection)
	if m == nil {
		return "", 0, fmt.Errorf("invalid image selection: %q", selection)
	}
	if len(m[2]) > 0 {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, fmt.Errorf("invalid image selection: %q", selection)
		}
		return "index", n, nil
	}
	return m[1], 0, nil
}

// LoadConfigFile marshalls the config.json document returning an
// instance of a Config variable containing all the values
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = json.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}

	for i := range config.Products {
		err = config.Products[i].normalise()
		if err != nil {
			return fmt.Errorf("product %d (%s): %v", i, config.Products[i].Name, err)
		}
	}
	return nil
}

func (p *Product) normalise() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return fmt.Errorf("missing product name")
	}
	if len(p.Kind) == 0 {
		p.Kind = ProductDelta
	}
	if len(strings.TrimSpace(p.Dataset)) == 0 {
		return fmt.Errorf("missing dataset")
	}
	if len(p.Title) == 0 {
		p.Title = p.Name
	}
	if p.Zoom <= 0 {
		p.Zoom = DefaultZoom
	}

	if len(p.Point) > 0 && string(p.Point) != "null" {
		pt, err := ParsePoint(p.Point)
		if err != nil {
			return err
		}
		p.Location = &pt
	}

	switch p.Kind {
	case ProductDelta:
		if len(p.BandA) == 0 || len(p.BandB) == 0 {
			return fmt.Errorf("a delta product needs band_a and band_b")
		}
		if len(p.Periods) != 2 {
			return fmt.Errorf("a delta product needs exactly 2 periods, got %d", len(p.Periods))
		}
		if p.Location == nil {
			return fmt.Errorf("a delta product needs a point")
		}
	case ProductComposite:
		if len(p.Band) == 0 {
			return fmt.Errorf("a composite product needs a band")
		}
		if len(p.Periods) == 0 {
			return fmt.Errorf("a composite product needs at least 1 period")
		}
	default:
		return fmt.Errorf("unknown product kind: %q", p.Kind)
	}

	if len(p.Expression) > 0 {
		if _, err := ParseBandExpressions([]string{p.Expression}); err != nil {
			return err
		}
	}

	for i := range p.Periods {
		period := &p.Periods[i]
		start, err := ParseISODate(period.Start)
		if err != nil {
			return fmt.Errorf("period %d: %v", i, err)
		}
		end, err := ParseISODate(period.End)
		if err != nil {
			return fmt.Errorf("period %d: %v", i, err)
		}
		if end.Before(start) {
			return fmt.Errorf("period %d: end %s is before start %s", i, period.End, period.Start)
		}
		if _, _, err := ParseSelection(period.Selection); err != nil {
			return fmt.Errorf("period %d: %v", i, err)
		}
		period.StartTime = start
		period.EndTime = end
		if len(period.Title) == 0 {
			period.Title = fmt.Sprintf("%s %s/%s", p.Title, period.Start, period.End)
		}
	}

	if p.Mask != nil && len(p.Mask.Value) == 0 {
		if len(p.Mask.BitTests) == 0 {
			return fmt.Errorf("Please specify either mask.Value or mask.BitTests")
		} else if len(p.Mask.BitTests)%2 != 0 {
			return fmt.Errorf("The entries in mask.BitTests must be in pairs")
		}
	}

	if !(p.Style.Max > p.Style.Min) {
		return fmt.Errorf("style max %v must be greater than min %v", p.Style.Max, p.Style.Min)
	}
	if len(p.Style.Palette) < 2 {
		return fmt.Errorf("The colour palette must contain at least 2 colours.")
	}
	if _, err := p.Style.RGBAPalette(); err != nil {
		return err
	}
	return nil
}

// RGBAPalette parses the style palette. Palettes interpolate unless
// the style says otherwise.
func (s Style) RGBAPalette() (*Palette, error) {
	interpolate := true
	if s.Interpolate != nil {
		interpolate = *s.Interpolate
	}
	return ParsePalette(s.Palette, interpolate)
}

// GetProductIndex returns the index of the
// specified product inside the Config.Products
// field.
func GetProductIndex(name string, config *Config) (int, error) {
	if len(name) == 0 {
		return -1, fmt.Errorf("no product specified")
	}
	for i := range config.Products {
		if config.Products[i].Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s not found in config products", name)
}
