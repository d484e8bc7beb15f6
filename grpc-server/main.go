package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/ndelta/processor"
	pb "github.com/nci/ndelta/worker/indexservice"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

type server struct {
	Worker   *processor.IndexWorker
	Strategy string
	Debug    bool
}

func (s *server) NormalizedDifference(ctx context.Context, in *pb.IndexRequest) (*pb.Result, error) {
	if len(in.Strategy) == 0 {
		in.Strategy = s.Strategy
	}
	if s.Debug {
		log.Printf("index request: image %s, grid %v, strategy %s", in.ImageID, in.Grid, in.Strategy)
	}
	return s.Worker.NormalizedDifference(ctx, in)
}

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 8, "Maximum number of requests handled concurrently.")
	strategy := flag.String("strategy", "expression", "Default index strategy: expression or explicit.")
	maxRecvMsgSize := flag.Int("max_recv_msg_size", processor.DefaultGrpcRecvMsgSize, "Maximum gRPC message size in bytes.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	if _, err := processor.NewIndexStrategy(*strategy); err != nil {
		log.Printf("Invalid strategy: %v", err)
		os.Exit(2)
	}

	w, err := processor.NewIndexWorker(*poolSize, *debug)
	if err != nil {
		log.Printf("Failed to create worker pool: %v", err)
		os.Exit(2)
	}

	s := grpc.NewServer(grpc.MaxRecvMsgSize(*maxRecvMsgSize), grpc.MaxSendMsgSize(*maxRecvMsgSize))
	pb.RegisterIndexWorkerServer(s, &server{Worker: w, Strategy: *strategy, Debug: *debug})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		s.GracefulStop()
		w.Pool.Close()
	}()

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Printf("index worker listening on :%d with %d workers", *port, *poolSize)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
