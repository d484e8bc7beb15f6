package extractor

import (
	"time"

	"github.com/nci/ndelta/utils"
)

// SceneBand is one band of a scene. Data is stored row major and
// covers the scene grid.
type SceneBand struct {
	Name   string    `json:"name" yaml:"name"`
	NoData *float64  `json:"nodata,omitempty" yaml:"nodata"`
	Data   []float64 `json:"data" yaml:"data"`
}

// Scene is the catalogue record of one acquisition.
type Scene struct {
	ID         string       `json:"id"`
	Dataset    string       `json:"dataset"`
	Acquired   time.Time    `json:"acquired"`
	CloudCover float64      `json:"cloud_cover"`
	Footprint  []float64    `json:"footprint"`
	Grid       utils.Grid   `json:"grid"`
	Bands      []*SceneBand `json:"bands"`
	PosixInfo  *PosixInfo   `json:"posix_info,omitempty"`
}

type PosixInfo struct {
	FilePath string    `json:"file_path"`
	INode    uint64    `json:"inode"`
	Size     int64     `json:"size"`
	MTime    time.Time `json:"mtime"`
	CTime    time.Time `json:"ctime"`
	ID       string    `json:"id"`
}
