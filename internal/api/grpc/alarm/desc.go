package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "morningglow.v1.AlarmService"

// Method names.
const (
	MethodListAlarms        = "ListAlarms"
	MethodSaveAlarm         = "SaveAlarm"
	MethodDeleteAlarm       = "DeleteAlarm"
	MethodToggleAlarm       = "ToggleAlarm"
	MethodGetStatus         = "GetStatus"
	MethodStop              = "Stop"
	MethodSnooze            = "Snooze"
	MethodSetVolume         = "SetVolume"
	MethodGetQuote          = "GetQuote"
	MethodRefreshQuote      = "RefreshQuote"
	MethodUploadSound       = "UploadSound"
	MethodListNotifications = "ListNotifications"
	MethodListPresets       = "ListPresets"
)

// MaxSoundBytes caps an uploaded sound, and with it the message size limits.
const MaxSoundBytes = 16 << 20

// AlarmServiceServer is the server API of the alarm service.
type AlarmServiceServer interface {
	ListAlarms(ctx context.Context, includeSnoozes *wrapperspb.BoolValue) (*structpb.Struct, error)
	SaveAlarm(ctx context.Context, alarm *structpb.Struct) (*structpb.Struct, error)
	DeleteAlarm(ctx context.Context, id *wrapperspb.StringValue) (*emptypb.Empty, error)
	ToggleAlarm(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Stop(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Snooze(ctx context.Context, minutes *wrapperspb.Int32Value) (*structpb.Struct, error)
	SetVolume(ctx context.Context, volume *wrapperspb.DoubleValue) (*wrapperspb.DoubleValue, error)
	GetQuote(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	RefreshQuote(ctx context.Context, force *wrapperspb.BoolValue) (*structpb.Struct, error)
	UploadSound(ctx context.Context, data *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	ListNotifications(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListPresets(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the alarm service for grpc.ServiceRegistrar.
//
//nolint:gochecknoglobals // Mirrors the descriptor protoc-gen-go-grpc would emit.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListAlarms, AlarmServiceServer.ListAlarms),
		unary(MethodSaveAlarm, AlarmServiceServer.SaveAlarm),
		unary(MethodDeleteAlarm, AlarmServiceServer.DeleteAlarm),
		unary(MethodToggleAlarm, AlarmServiceServer.ToggleAlarm),
		unary(MethodGetStatus, AlarmServiceServer.GetStatus),
		unary(MethodStop, AlarmServiceServer.Stop),
		unary(MethodSnooze, AlarmServiceServer.Snooze),
		unary(MethodSetVolume, AlarmServiceServer.SetVolume),
		unary(MethodGetQuote, AlarmServiceServer.GetQuote),
		unary(MethodRefreshQuote, AlarmServiceServer.RefreshQuote),
		unary(MethodUploadSound, AlarmServiceServer.UploadSound),
		unary(MethodListNotifications, AlarmServiceServer.ListNotifications),
		unary(MethodListPresets, AlarmServiceServer.ListPresets),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterAlarmServiceServer registers srv on registrar.
func RegisterAlarmServiceServer(registrar grpc.ServiceRegistrar, srv AlarmServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the descriptor of a unary method from its interface method expression.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](
	name string,
	call func(AlarmServiceServer, context.Context, PReq) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}

			server, _ := srv.(AlarmServiceServer)

			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				typed, _ := req.(PReq)

				return call(server, ctx, typed)
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}
