package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "apptbook.availability.v1.AvailabilityService"

	GetAvailableSlotsMethod = "/" + ServiceName + "/GetAvailableSlots"
	IsSlotAvailableMethod   = "/" + ServiceName + "/IsSlotAvailable"
)

// Availability is the read side served over gRPC. *booking.Service implements it.
type Availability interface {
	AvailableSlots(ctx context.Context, q availability.SlotQuery) (availability.Availability, error)
	CheckSlot(ctx context.Context, c availability.SlotCheck) (availability.SlotDecision, error)
}

// AvailabilityServer is the handler type of ServiceDesc. Messages are
// structpb.Struct so no generated code is needed on either side.
type AvailabilityServer interface {
	GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IsSlotAvailable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailableSlots", Handler: getAvailableSlotsHandler},
		{MethodName: "IsSlotAvailable", Handler: isSlotAvailableHandler},
	},
	Metadata: "apptbook/availability/v1/availability.proto",
}

type server struct {
	svc Availability
}

// Register installs the availability service and the standard health service.
func Register(grpcServer *grpc.Server, svc Availability) *health.Server {
	grpcServer.RegisterService(&ServiceDesc, &server{svc: svc})
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)
	return hs
}

func (s *server) GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	res, err := s.svc.AvailableSlots(ctx, availability.SlotQuery{
		ProviderID: fields["provider_id"].GetStringValue(),
		ServiceID:  fields["service_id"].GetStringValue(),
		Date:       fields["date"].GetStringValue(),
		Timezone:   fields["timezone"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return Encode(res)
}

func (s *server) IsSlotAvailable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	minutes := fields["duration_minutes"].GetNumberValue()
	if minutes != math.Trunc(minutes) || math.Abs(minutes) > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "duration_minutes: must be a whole number of minutes")
	}
	check := availability.SlotCheck{
		ProviderID:           fields["provider_id"].GetStringValue(),
		DurationMinutes:      int(minutes),
		ExcludeAppointmentID: fields["exclude_appointment_id"].GetStringValue(),
	}
	start, err := time.Parse(time.RFC3339, fields["start_time"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start_time: must be RFC3339")
	}
	check.Start = start

	res, err := s.svc.CheckSlot(ctx, check)
	if err != nil {
		return nil, toStatus(err)
	}
	return Encode(res)
}

func getAvailableSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).GetAvailableSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAvailableSlotsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).GetAvailableSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func isSlotAvailableHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).IsSlotAvailable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IsSlotAvailableMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).IsSlotAvailable(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Encode converts a JSON-tagged value into a structpb.Struct.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return structpb.NewStruct(m)
}

// Decode is the inverse of Encode.
func Decode(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return json.Unmarshal(raw, v)
}

func toStatus(err error) error {
	var (
		ve *availability.ValidationError
		nf *availability.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.As(err, &nf):
		return status.Error(codes.NotFound, nf.Error())
	case errors.Is(err, availability.ErrTransient):
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
