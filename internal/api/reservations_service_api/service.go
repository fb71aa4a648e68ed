package reservations_service_api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct documents using the same field names
// as the HTTP API.
const ServiceName = "salonbooking.reservations.v1.ReservationsService"

type ReservationsServiceServer interface {
	CreateReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ModifyReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LookupReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ReservationsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateReservation", ReservationsServiceServer.CreateReservation),
		method("ModifyReservation", ReservationsServiceServer.ModifyReservation),
		method("CancelReservation", ReservationsServiceServer.CancelReservation),
		method("CompleteReservation", ReservationsServiceServer.CompleteReservation),
		method("GetReservation", ReservationsServiceServer.GetReservation),
		method("LookupReservations", ReservationsServiceServer.LookupReservations),
		method("CheckAvailability", ReservationsServiceServer.CheckAvailability),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salonbooking/reservations/v1",
}

func RegisterReservationsServiceServer(s grpc.ServiceRegistrar, srv ReservationsServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func method(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ReservationsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ReservationsServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the reservations service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method (for example "CreateReservation") with a document request.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
