package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aiserving/mvbench/serving"
)

const (
	serviceName = "mvbench.ModelService"

	methodInfer    = "/" + serviceName + "/Infer"
	methodMetadata = "/" + serviceName + "/GetModelMetadata"
	methodStatus   = "/" + serviceName + "/GetModelStatus"
)

// RegisterModelServer exposes a ModelServer implementation on a gRPC
// server. Application errors are mapped to gRPC status codes here so the
// implementation stays transport-agnostic.
func RegisterModelServer(s *grpc.Server, impl serving.ModelServer) {
	s.RegisterService(&modelServiceDesc, &statusMapper{impl: impl})
}

// statusMapper translates the serving error taxonomy into status codes.
type statusMapper struct {
	impl serving.ModelServer
}

func (m *statusMapper) Infer(ctx context.Context, req *serving.InferRequest) (*serving.InferResponse, error) {
	resp, err := m.impl.Infer(ctx, req)
	return resp, mapServerErr(err)
}

func (m *statusMapper) GetModelMetadata(ctx context.Context, req *serving.MetadataRequest) (*serving.ModelMetadata, error) {
	resp, err := m.impl.GetModelMetadata(ctx, req)
	return resp, mapServerErr(err)
}

func (m *statusMapper) GetModelStatus(ctx context.Context, req *serving.StatusRequest) (*serving.StatusResponse, error) {
	resp, err := m.impl.GetModelStatus(ctx, req)
	return resp, mapServerErr(err)
}

func mapServerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, serving.ErrVersionNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*serving.ModelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Infer", Handler: inferHandler},
		{MethodName: "GetModelMetadata", Handler: metadataHandler},
		{MethodName: "GetModelStatus", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mvbench/serving",
}

func inferHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(serving.InferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serving.ModelServer).Infer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInfer}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(serving.ModelServer).Infer(ctx, req.(*serving.InferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func metadataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(serving.MetadataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serving.ModelServer).GetModelMetadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodMetadata}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(serving.ModelServer).GetModelMetadata(ctx, req.(*serving.MetadataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(serving.StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serving.ModelServer).GetModelStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStatus}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(serving.ModelServer).GetModelStatus(ctx, req.(*serving.StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}
