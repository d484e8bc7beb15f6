package extractor

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/nci/ndelta/utils"
	"gopkg.in/yaml.v2"
)

type sceneYaml struct {
	ID         string       `yaml:"id"`
	Dataset    string       `yaml:"dataset"`
	Acquired   string       `yaml:"acquired"`
	CloudCover float64      `yaml:"cloud_cover"`
	Footprint  []float64    `yaml:"footprint"`
	Grid       utils.Grid   `yaml:"grid"`
	Bands      []*SceneBand `yaml:"bands"`
}

// ExtractScene parses a scene document. The scene id defaults to the
// file name without its extension.
func ExtractScene(filename string) (*Scene, error) {
	rawData, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	md := sceneYaml{}
	err = yaml.Unmarshal(rawData, &md)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}

	if len(md.ID) == 0 {
		base := filepath.Base(filename)
		md.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(md.Dataset) == 0 {
		return nil, fmt.Errorf("%s: missing dataset", filename)
	}

	acquired, err := utils.ParseISODate(md.Acquired)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid acquisition time: %v", filename, err)
	}

	if len(md.Footprint) != 4 || md.Footprint[0] > md.Footprint[2] || md.Footprint[1] > md.Footprint[3] {
		return nil, fmt.Errorf("%s: footprint must be [minx, miny, maxx, maxy]", filename)
	}
	if md.Grid.Width <= 0 || md.Grid.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid grid %dx%d", filename, md.Grid.Width, md.Grid.Height)
	}
	if len(md.Grid.GeoTransform) != 0 && len(md.Grid.GeoTransform) != 6 {
		return nil, fmt.Errorf("%s: geo_transform must have 6 coefficients", filename)
	}

	if len(md.Bands) == 0 {
		return nil, fmt.Errorf("%s: scene has no bands", filename)
	}
	seen := make(map[string]bool)
	for ib, band := range md.Bands {
		if band == nil || len(band.Name) == 0 {
			return nil, fmt.Errorf("%s: band %d has no name", filename, ib)
		}
		if seen[band.Name] {
			return nil, fmt.Errorf("%s: duplicated band %s", filename, band.Name)
		}
		seen[band.Name] = true
		if len(band.Data) != md.Grid.Size() {
			return nil, fmt.Errorf("%s: band %s has %d pixels, grid needs %d", filename, band.Name, len(band.Data), md.Grid.Size())
		}
	}

	scene := &Scene{
		ID:         md.ID,
		Dataset:    md.Dataset,
		Acquired:   acquired,
		CloudCover: md.CloudCover,
		Footprint:  md.Footprint,
		Grid:       md.Grid,
		Bands:      md.Bands,
	}

	fStat, fErr := os.Lstat(filename)
	if fErr != nil {
		scene.PosixInfo = &PosixInfo{}
	} else {
		scene.PosixInfo = GetPosixInfo(filename, fStat)
	}
	return scene, nil
}

func isSceneFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == ".yaml" || ext == ".yml"
}
