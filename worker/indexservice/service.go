package indexservice

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "indexservice.IndexWorker"

type IndexWorkerServer interface {
	NormalizedDifference(ctx context.Context, in *IndexRequest) (*Result, error)
}

func RegisterIndexWorkerServer(s *grpc.Server, srv IndexWorkerServer) {
	s.RegisterService(&IndexWorkerServiceDesc, srv)
}

func normalizedDifferenceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(IndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IndexWorkerServer).NormalizedDifference(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/NormalizedDifference",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IndexWorkerServer).NormalizedDifference(ctx, req.(*IndexRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var IndexWorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*IndexWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "NormalizedDifference",
			Handler:    normalizedDifferenceHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "indexservice",
}

type IndexWorkerClient interface {
	NormalizedDifference(ctx context.Context, in *IndexRequest, opts ...grpc.CallOption) (*Result, error)
}

type indexWorkerClient struct {
	cc grpc.ClientConnInterface
}

func NewIndexWorkerClient(cc grpc.ClientConnInterface) IndexWorkerClient {
	return &indexWorkerClient{cc}
}

func (c *indexWorkerClient) NormalizedDifference(ctx context.Context, in *IndexRequest, opts ...grpc.CallOption) (*Result, error) {
	out := new(Result)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/NormalizedDifference", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
