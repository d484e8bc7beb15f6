package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/edisonguo/jet"
)

// StyleOptions are the recognised options of a map layer style.
type StyleOptions struct {
	Min     float64
	Max     float64
	Palette []string
}

// MapRenderer is the map collaborator the pipeline results are
// handed to.
type MapRenderer interface {
	CenterOn(r Raster, zoom int) error
	AddLayer(r Raster, style StyleOptions, name string) error
}

const LayersTemplate = "layers.tpl"
const LayersFile = "layers.json"

type renderedLayer struct {
	Name    string
	File    string
	Min     string
	Max     string
	Palette string
	Width   string
	Height  string
}

// FileRenderer writes every layer as a PNG file and, on Flush, a
// layers.json descriptor rendered from a jet template.
type FileRenderer struct {
	OutputDir   string
	TemplateDir string
	centerX     string
	centerY     string
	zoom        string
	layers      []renderedLayer
}

func NewFileRenderer(outputDir, templateDir string) *FileRenderer {
	return &FileRenderer{
		OutputDir:   outputDir,
		TemplateDir: templateDir,
		centerX:     "0",
		centerY:     "0",
		zoom:        strconv.Itoa(DefaultZoom),
	}
}

func (fr *FileRenderer) CenterOn(r Raster, zoom int) error {
	if r == nil {
		return fmt.Errorf("cannot center on a nil raster")
	}
	x, y := r.GetGrid().Center()
	fr.centerX = formatFloat(x)
	fr.centerY = formatFloat(y)
	fr.zoom = strconv.Itoa(zoom)
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// LayerFileName returns the image file name of a layer.
func LayerFileName(name string) string {
	fn := strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if len(fn) == 0 {
		fn = "layer"
	}
	return fn + ".png"
}

func (fr *FileRenderer) AddLayer(r Raster, style StyleOptions, name string) error {
	palette, err := ParsePalette(style.Palette, true)
	if err != nil {
		return err
	}
	ramp, err := GradientRGBAPalette(palette)
	if err != nil {
		return err
	}

	scaled, err := Scale([]Raster{r}, ScaleParams{Min: style.Min, Max: style.Max})
	if err != nil {
		return fmt.Errorf("layer %s: %v", name, err)
	}
	img, err := EncodePNG(scaled[0], ramp)
	if err != nil {
		return fmt.Errorf("layer %s: %v", name, err)
	}

	err = os.MkdirAll(fr.OutputDir, 0755)
	if err != nil {
		return err
	}
	fileName := LayerFileName(name)
	err = ioutil.WriteFile(filepath.Join(fr.OutputDir, fileName), img, 0644)
	if err != nil {
		return fmt.Errorf("layer %s: %v", name, err)
	}

	quoted := make([]string, len(style.Palette))
	for i, c := range style.Palette {
		quoted[i] = `"` + jsonEscape(c) + `"`
	}
	grid := r.GetGrid()
	fr.layers = append(fr.layers, renderedLayer{
		Name:    jsonEscape(name),
		File:    jsonEscape(fileName),
		Min:     formatFloat(style.Min),
		Max:     formatFloat(style.Max),
		Palette: strings.Join(quoted, ","),
		Width:   strconv.Itoa(grid.Width),
		Height:  strconv.Itoa(grid.Height),
	})
	return nil
}

// Flush writes the layers descriptor and returns its path.
func (fr *FileRenderer) Flush() (string, error) {
	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), fr.TemplateDir)

	template, err := view.GetTemplate(LayersTemplate)
	if err != nil {
		return "", fmt.Errorf("layers template error: %v", err)
	}

	type layersDescriptor struct {
		CenterX string
		CenterY string
		Zoom    string
		Layers  []renderedLayer
	}

	var buf bytes.Buffer
	vars := make(jet.VarMap)
	desc := &layersDescriptor{CenterX: fr.centerX, CenterY: fr.centerY, Zoom: fr.zoom, Layers: fr.layers}
	if err = template.Execute(&buf, vars, desc); err != nil {
		return "", fmt.Errorf("layers template error: %v", err)
	}

	err = os.MkdirAll(fr.OutputDir, 0755)
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(fr.OutputDir, LayersFile)
	err = ioutil.WriteFile(outPath, buf.Bytes(), 0644)
	if err != nil {
		return "", err
	}
	return outPath, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
