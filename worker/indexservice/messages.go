package indexservice

import (
	"github.com/nci/ndelta/utils"
)

// IndexRequest carries the two bands of an image. Nodata pixels are
// already NaN.
type IndexRequest struct {
	ImageID  string
	Grid     utils.Grid
	BandA    []float64
	BandB    []float64
	Strategy string
}

type Result struct {
	Grid     utils.Grid
	Data     []float64
	WorkerID string
	Error    string
}

type ErrorMsg struct {
	WorkerID string
	Error    error
}

type Task struct {
	Payload *IndexRequest
	Resp    chan *Result
	Error   chan error
}
