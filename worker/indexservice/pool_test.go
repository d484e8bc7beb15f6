package indexservice

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/nci/ndelta/utils"
	"google.golang.org/grpc/encoding"
)

func sumBands(in *IndexRequest) (*Result, error) {
	if in.ImageID == "panic" {
		panic("corrupted request")
	}
	if len(in.BandA) != len(in.BandB) {
		return nil, fmt.Errorf("band sizes differ")
	}
	out := make([]float64, len(in.BandA))
	for i := range out {
		out[i] = in.BandA[i] + in.BandB[i]
	}
	return &Result{Grid: in.Grid, Data: out}, nil
}

func runTask(p *TaskPool, in *IndexRequest) (*Result, error) {
	rChan := make(chan *Result, 1)
	errChan := make(chan error, 1)
	p.AddQueue(&Task{Payload: in, Resp: rChan, Error: errChan})
	select {
	case res := <-rChan:
		return res, nil
	case err := <-errChan:
		return nil, err
	}
}

func TestTaskPool(t *testing.T) {
	p, err := CreateTaskPool(3, sumBands, false)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := runTask(p, &IndexRequest{ImageID: fmt.Sprintf("img%d", i), BandA: []float64{float64(i)}, BandB: []float64{1}})
			if err != nil {
				t.Errorf("task %d: %v", i, err)
				return
			}
			if res.Data[0] != float64(i+1) || len(res.WorkerID) == 0 {
				t.Errorf("task %d: unexpected result %+v", i, res)
			}
		}(i)
	}
	wg.Wait()

	if _, err = runTask(p, &IndexRequest{BandA: []float64{1}}); err == nil {
		t.Errorf("compute errors must be returned")
	}
	if _, err = runTask(p, &IndexRequest{ImageID: "panic"}); err == nil {
		t.Errorf("panics must be returned as errors")
	}
	if res, err := runTask(p, &IndexRequest{ImageID: "after", BandA: []float64{1}, BandB: []float64{2}}); err != nil || res.Data[0] != 3 {
		t.Errorf("the pool must survive a panic, got %v, %v", res, err)
	}
}

func TestCreateTaskPoolErrors(t *testing.T) {
	if _, err := CreateTaskPool(0, sumBands, false); err == nil {
		t.Errorf("empty pools must be rejected")
	}
	if _, err := CreateTaskPool(2, nil, false); err == nil {
		t.Errorf("pools without compute function must be rejected")
	}
}

func TestGobCodecKeepsNaN(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatalf("codec %s not registered", CodecName)
	}

	in := &Result{
		Grid: utils.Grid{Width: 3, Height: 1, CRS: "EPSG:4326", GeoTransform: []float64{98.4, 0.1, 0, 20.6, 0, -0.1}},
		Data: []float64{0.25, math.NaN(), math.Inf(-1)},
	}
	buf, err := codec.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out := &Result{}
	if err = codec.Unmarshal(buf, out); err != nil {
		t.Fatal(err)
	}
	if !out.Grid.Equal(in.Grid) || out.Data[0] != 0.25 || !math.IsNaN(out.Data[1]) || !math.IsInf(out.Data[2], -1) {
		t.Errorf("unexpected decoded result %+v", out)
	}
}
