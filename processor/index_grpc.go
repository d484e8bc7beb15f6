package processor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/nci/ndelta/utils"
	pb "github.com/nci/ndelta/worker/indexservice"
	"google.golang.org/grpc"
)

const DefaultGrpcRecvMsgSize = 64 * 1024 * 1024

// RemoteStrategy delegates index computation to index workers. Calls
// are spread round robin and fail over to the next worker.
type RemoteStrategy struct {
	Context  context.Context
	Clients  []string
	Strategy string

	conns      []*grpc.ClientConn
	workers    []pb.IndexWorkerClient
	addrs      []string
	next       uint32
	lastWorker atomic.Value
	closeOnce  sync.Once
}

func NewRemoteStrategy(ctx context.Context, serverAddress []string, strategy string, maxGrpcRecvMsgSize int, dialOpts ...grpc.DialOption) (*RemoteStrategy, error) {
	if len(serverAddress) == 0 {
		return nil, fmt.Errorf("no index worker configured")
	}
	if maxGrpcRecvMsgSize <= 0 {
		maxGrpcRecvMsgSize = DefaultGrpcRecvMsgSize
	}

	opts := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGrpcRecvMsgSize)),
	}
	opts = append(opts, dialOpts...)

	rs := &RemoteStrategy{Context: ctx, Clients: serverAddress, Strategy: strategy}

	clientIdx := rand.Perm(len(serverAddress))
	for _, ic := range clientIdx {
		conn, err := grpc.Dial(serverAddress[ic], opts...)
		if err != nil {
			log.Printf("gRPC connection problem: %v", err)
			continue
		}
		rs.conns = append(rs.conns, conn)
		rs.workers = append(rs.workers, pb.NewIndexWorkerClient(conn))
		rs.addrs = append(rs.addrs, serverAddress[ic])
	}

	if len(rs.conns) == 0 {
		return nil, fmt.Errorf("All gRPC servers offline")
	}
	return rs, nil
}

func (rs *RemoteStrategy) NormalizedDifference(img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error) {
	return rs.NormalizedDifferenceContext(rs.Context, img, bandA, bandB)
}

// NormalizedDifferenceContext sends the calls on ctx instead of the
// strategy's own context.
func (rs *RemoteStrategy) NormalizedDifferenceContext(ctx context.Context, img *RasterImage, bandA, bandB string) (*utils.Float64Raster, error) {
	a, err := bandRaster(img, bandA)
	if err != nil {
		return nil, err
	}
	b, err := bandRaster(img, bandB)
	if err != nil {
		return nil, err
	}

	req := &pb.IndexRequest{
		ImageID:  img.ID,
		Grid:     img.Grid,
		BandA:    a.Data,
		BandB:    b.Data,
		Strategy: rs.Strategy,
	}

	var errs []error
	start := atomic.AddUint32(&rs.next, 1)
	for i := 0; i < len(rs.workers); i++ {
		idx := int(start+uint32(i)) % len(rs.workers)
		res, err := rs.workers[idx].NormalizedDifference(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %v", rs.addrs[idx], err))
			continue
		}
		if len(res.Error) > 0 {
			return nil, fmt.Errorf("%s: %s", rs.addrs[idx], res.Error)
		}
		if !res.Grid.Equal(img.Grid) || len(res.Data) != img.Grid.Size() {
			return nil, fmt.Errorf("%s: result does not match the grid of image %s", rs.addrs[idx], img.ID)
		}

		rs.lastWorker.Store(rs.addrs[idx])
		out := &utils.Float64Raster{Grid: img.Grid, Data: res.Data, NameSpace: fmt.Sprintf("nd(%s,%s)", bandA, bandB)}
		return out, nil
	}
	return nil, fmt.Errorf("all index workers failed: %v", errs)
}

// LastWorker returns the address of the worker that served the last
// successful call.
func (rs *RemoteStrategy) LastWorker() string {
	addr, _ := rs.lastWorker.Load().(string)
	return addr
}

func (rs *RemoteStrategy) Close() error {
	var err error
	rs.closeOnce.Do(func() {
		for _, conn := range rs.conns {
			if cErr := conn.Close(); cErr != nil && err == nil {
				err = cErr
			}
		}
	})
	return err
}
