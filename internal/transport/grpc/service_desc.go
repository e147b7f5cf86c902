package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "barbershop.v1.BarbershopService"

// BarbershopServer is the handler set registered under ServiceName.
type BarbershopServer interface {
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	RescheduleAppointment(context.Context, *RescheduleAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(context.Context, *AppointmentRequest) (*AppointmentResponse, error)
	CompleteAppointment(context.Context, *CompleteAppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(context.Context, *AppointmentRequest) (*AppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	ListOccupiedSlots(context.Context, *ListOccupiedSlotsRequest) (*ListOccupiedSlotsResponse, error)
	CreateAgendaBlock(context.Context, *CreateAgendaBlockRequest) (*AgendaBlockResponse, error)
	DeleteAgendaBlock(context.Context, *DeleteAgendaBlockRequest) (*Empty, error)
	ListAgendaBlocks(context.Context, *ListAgendaBlocksRequest) (*ListAgendaBlocksResponse, error)
	RecordManualMovement(context.Context, *RecordManualMovementRequest) (*MovementResponse, error)
	GetCentralLedger(context.Context, *GetCentralLedgerRequest) (*GetCentralLedgerResponse, error)
	GetMyWallet(context.Context, *GetMyWalletRequest) (*GetMyWalletResponse, error)
	CreatePaymentLink(context.Context, *CreatePaymentLinkRequest) (*CreatePaymentLinkResponse, error)
}

// publicMethods skip bearer authentication.
var publicMethods = map[string]bool{
	fullMethod("ListOccupiedSlots"): true,
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BarbershopServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateAppointment", BarbershopServer.CreateAppointment),
		unary("RescheduleAppointment", BarbershopServer.RescheduleAppointment),
		unary("CancelAppointment", BarbershopServer.CancelAppointment),
		unary("CompleteAppointment", BarbershopServer.CompleteAppointment),
		unary("GetAppointment", BarbershopServer.GetAppointment),
		unary("ListAppointments", BarbershopServer.ListAppointments),
		unary("ListOccupiedSlots", BarbershopServer.ListOccupiedSlots),
		unary("CreateAgendaBlock", BarbershopServer.CreateAgendaBlock),
		unary("DeleteAgendaBlock", BarbershopServer.DeleteAgendaBlock),
		unary("ListAgendaBlocks", BarbershopServer.ListAgendaBlocks),
		unary("RecordManualMovement", BarbershopServer.RecordManualMovement),
		unary("GetCentralLedger", BarbershopServer.GetCentralLedger),
		unary("GetMyWallet", BarbershopServer.GetMyWallet),
		unary("CreatePaymentLink", BarbershopServer.CreatePaymentLink),
	},
	Metadata: "barbershop/v1/barbershop.json",
}

// RegisterBarbershopServer attaches srv to s under ServiceName.
func RegisterBarbershopServer(s grpc.ServiceRegistrar, srv BarbershopServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp any](name string, call func(BarbershopServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BarbershopServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}
