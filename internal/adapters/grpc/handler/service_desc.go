package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	timeTrackingServiceName = "worktime.v1.TimeTrackingService"
	staffServiceName        = "worktime.v1.StaffService"
)

// TimeTrackingServer は TimeTrackingService のサーバーインターフェースです。
// メッセージはすべて google.protobuf.Struct で受け渡します。
type TimeTrackingServer interface {
	CheckIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartBreak(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndBreak(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CorrectSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCorrections(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCurrentSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWeekSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAbsence(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveAbsence(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectAbsence(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAbsences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAbsence(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// StaffServer は StaffService のサーバーインターフェースです。
type StaffServer interface {
	CreateStaff(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStaff(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStaff(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStaff(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteStaff(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// TimeTrackingServiceDesc は TimeTrackingService の grpc.ServiceDesc です。
var TimeTrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: timeTrackingServiceName,
	HandlerType: (*TimeTrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		structMethod(timeTrackingServiceName, "CheckIn", TimeTrackingServer.CheckIn),
		structMethod(timeTrackingServiceName, "StartBreak", TimeTrackingServer.StartBreak),
		structMethod(timeTrackingServiceName, "EndBreak", TimeTrackingServer.EndBreak),
		structMethod(timeTrackingServiceName, "CheckOut", TimeTrackingServer.CheckOut),
		structMethod(timeTrackingServiceName, "CorrectSession", TimeTrackingServer.CorrectSession),
		structMethod(timeTrackingServiceName, "ListCorrections", TimeTrackingServer.ListCorrections),
		structMethod(timeTrackingServiceName, "GetSession", TimeTrackingServer.GetSession),
		structMethod(timeTrackingServiceName, "GetCurrentSession", TimeTrackingServer.GetCurrentSession),
		structMethod(timeTrackingServiceName, "ListHistory", TimeTrackingServer.ListHistory),
		structMethod(timeTrackingServiceName, "GetWeekSummary", TimeTrackingServer.GetWeekSummary),
		structMethod(timeTrackingServiceName, "CreateAbsence", TimeTrackingServer.CreateAbsence),
		structMethod(timeTrackingServiceName, "ApproveAbsence", TimeTrackingServer.ApproveAbsence),
		structMethod(timeTrackingServiceName, "RejectAbsence", TimeTrackingServer.RejectAbsence),
		structMethod(timeTrackingServiceName, "ListAbsences", TimeTrackingServer.ListAbsences),
		structMethod(timeTrackingServiceName, "DeleteAbsence", TimeTrackingServer.DeleteAbsence),
	},
}

// StaffServiceDesc は StaffService の grpc.ServiceDesc です。
var StaffServiceDesc = grpc.ServiceDesc{
	ServiceName: staffServiceName,
	HandlerType: (*StaffServer)(nil),
	Methods: []grpc.MethodDesc{
		structMethod(staffServiceName, "CreateStaff", StaffServer.CreateStaff),
		structMethod(staffServiceName, "GetStaff", StaffServer.GetStaff),
		structMethod(staffServiceName, "ListStaff", StaffServer.ListStaff),
		structMethod(staffServiceName, "UpdateStaff", StaffServer.UpdateStaff),
		structMethod(staffServiceName, "DeleteStaff", StaffServer.DeleteStaff),
	},
}

// RegisterTimeTrackingServer は TimeTrackingService を登録します。
func RegisterTimeTrackingServer(s grpc.ServiceRegistrar, srv TimeTrackingServer) {
	s.RegisterService(&TimeTrackingServiceDesc, srv)
}

// RegisterStaffServer は StaffService を登録します。
func RegisterStaffServer(s grpc.ServiceRegistrar, srv StaffServer) {
	s.RegisterService(&StaffServiceDesc, srv)
}

// structMethod は protoc-gen-go-grpc が生成するハンドラと同じ手順で Struct メッセージを処理します。
func structMethod[S any](service, method string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
