package hpod

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// StudyServiceName is the fully qualified gRPC service name
const StudyServiceName = "hpo.v1.StudyService"

// StudyServiceServer is the server API for hpo.v1.StudyService. Requests and
// responses are google.protobuf.Struct documents with the same shape as the
// HTTP JSON bodies.
type StudyServiceServer interface {
	CreateStudy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStudy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStudies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTrials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBestTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopStudy(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(StudyServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StudyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + StudyServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StudyServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// StudyServiceDesc describes hpo.v1.StudyService for grpc.Server.RegisterService
var StudyServiceDesc = grpc.ServiceDesc{
	ServiceName: StudyServiceName,
	HandlerType: (*StudyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateStudy", Handler: unaryHandler("CreateStudy", StudyServiceServer.CreateStudy)},
		{MethodName: "GetStudy", Handler: unaryHandler("GetStudy", StudyServiceServer.GetStudy)},
		{MethodName: "ListStudies", Handler: unaryHandler("ListStudies", StudyServiceServer.ListStudies)},
		{MethodName: "ListTrials", Handler: unaryHandler("ListTrials", StudyServiceServer.ListTrials)},
		{MethodName: "GetBestTrial", Handler: unaryHandler("GetBestTrial", StudyServiceServer.GetBestTrial)},
		{MethodName: "StopStudy", Handler: unaryHandler("StopStudy", StudyServiceServer.StopStudy)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hpo/v1/study_service.proto",
}

// RegisterStudyServiceServer registers srv on s
func RegisterStudyServiceServer(s grpc.ServiceRegistrar, srv StudyServiceServer) {
	s.RegisterService(&StudyServiceDesc, srv)
}

// StudyServiceClient calls hpo.v1.StudyService over a client connection
type StudyServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStudyServiceClient(cc grpc.ClientConnInterface) *StudyServiceClient {
	return &StudyServiceClient{cc: cc}
}

func (c *StudyServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+StudyServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StudyServiceClient) CreateStudy(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateStudy", in, opts...)
}

func (c *StudyServiceClient) GetStudy(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStudy", in, opts...)
}

func (c *StudyServiceClient) ListStudies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListStudies", in, opts...)
}

func (c *StudyServiceClient) ListTrials(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListTrials", in, opts...)
}

func (c *StudyServiceClient) GetBestTrial(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetBestTrial", in, opts...)
}

func (c *StudyServiceClient) StopStudy(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopStudy", in, opts...)
}

// toStruct converts a JSON-shaped value to a Struct by way of its JSON encoding,
// so nested []map[string]any and typed maps are accepted
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
