package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

// SelectionInfo records how the image of one period was chosen.
type SelectionInfo struct {
	Period    string        `json:"period"`
	Dataset   string        `json:"dataset"`
	Mode      string        `json:"mode"`
	ImageID   string        `json:"image_id"`
	Acquired  string        `json:"acquired"`
	NumImages int           `json:"num_images"`
	Duration  time.Duration `json:"duration"`
	URL       URLInfo       `json:"url"`
}

type IndexInfo struct {
	Strategy string        `json:"strategy"`
	Worker   string        `json:"worker,omitempty"`
	Duration time.Duration `json:"duration"`
	NumCalls int           `json:"num_calls"`
}

type RasterInfo struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	NoDataPixels int     `json:"nodata_pixels"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
}

type MetricsInfo struct {
	ReqTime     string           `json:"req_time"`
	ReqDuration time.Duration    `json:"req_duration"`
	Product     string           `json:"product"`
	Kind        string           `json:"kind"`
	Geometry    string           `json:"geometry"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Selections  []*SelectionInfo `json:"selections"`
	Index       *IndexInfo       `json:"index"`
	Result      *RasterInfo      `json:"result"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			Index: &IndexInfo{},
		},
		logger: logger,
	}
}

// AddSelection appends a selection record. Periods may be processed
// concurrently so callers must serialise access to the collector.
func (m *MetricsCollector) AddSelection(sel *SelectionInfo) {
	m.Info.Selections = append(m.Info.Selections, sel)
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseURLs()
	if len(i.Geometry) == 0 {
		i.Geometry = "POINT EMPTY"
	}
	if len(i.Status) == 0 {
		if len(i.Error) > 0 {
			i.Status = "error"
		} else {
			i.Status = "ok"
		}
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err == nil {
		return buf.String(), nil
	} else {
		return "", err
	}
}

func (i *MetricsInfo) normaliseURLs() {
	for _, sel := range i.Selections {
		if sel == nil || len(sel.URL.RawURL) == 0 {
			continue
		}
		err := normaliseURL(&sel.URL)
		if err != nil {
			log.Printf("metrics: selection: normaliseUrl() error: %v", err)
		}
	}
}

func normaliseURL(u *URLInfo) error {
	r, err := url.Parse(u.RawURL)
	if err != nil {
		return err
	}

	u.Host = r.Host
	u.Path = r.Path
	query, err := url.ParseQuery(r.RawQuery)
	if err != nil {
		return err
	}

	if u.Query == nil {
		u.Query = make(map[string]string)
	}
	for k, v := range query {
		if len(v) == 1 {
			u.Query[k] = v[0]
		} else if len(v) > 1 {
			u.Query[k] = fmt.Sprintf("%v", v)
		} else {
			u.Query[k] = ""
		}
	}
	return nil
}
