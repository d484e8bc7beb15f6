package processor

import (
	"context"
	"fmt"

	pb "github.com/nci/ndelta/worker/indexservice"
)

const (
	workerBandA = "A"
	workerBandB = "B"
)

// IndexWorker serves normalized difference requests with a local
// strategy on a pool of worker goroutines.
type IndexWorker struct {
	Pool *pb.TaskPool
}

func NewIndexWorker(poolSize int, debug bool) (*IndexWorker, error) {
	pool, err := pb.CreateTaskPool(poolSize, ComputeIndexRequest, debug)
	if err != nil {
		return nil, err
	}
	return &IndexWorker{Pool: pool}, nil
}

// ComputeIndexRequest runs a request with the local strategy it
// names.
func ComputeIndexRequest(in *pb.IndexRequest) (*pb.Result, error) {
	strategy, err := NewIndexStrategy(in.Strategy)
	if err != nil {
		return nil, err
	}

	img := &RasterImage{
		ID:   in.ImageID,
		Grid: in.Grid,
		Bands: map[string]*Band{
			workerBandA: {Name: workerBandA, Data: in.BandA},
			workerBandB: {Name: workerBandB, Data: in.BandB},
		},
	}
	for name, band := range img.Bands {
		if len(band.Data) != img.Grid.Size() {
			return nil, fmt.Errorf("band %s of image %s does not match grid %v", name, in.ImageID, in.Grid)
		}
	}

	out, err := strategy.NormalizedDifference(img, workerBandA, workerBandB)
	if err != nil {
		return nil, err
	}
	return &pb.Result{Grid: out.Grid, Data: out.Data}, nil
}

func (w *IndexWorker) NormalizedDifference(ctx context.Context, in *pb.IndexRequest) (*pb.Result, error) {
	rChan := make(chan *pb.Result, 1)
	errChan := make(chan error, 1)

	w.Pool.AddQueue(&pb.Task{Payload: in, Resp: rChan, Error: errChan})

	select {
	case out := <-rChan:
		if len(out.Error) > 0 {
			return &pb.Result{}, fmt.Errorf("%s", out.Error)
		}
		return out, nil
	case err := <-errChan:
		return &pb.Result{}, fmt.Errorf("Error in ops: %v", err)
	case <-ctx.Done():
		return &pb.Result{}, ctx.Err()
	}
}
