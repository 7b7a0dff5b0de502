package availabilityclient

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/grpcserver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the availability gRPC service and maps status codes back to
// availability error kinds.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(ctx context.Context, addr string, opts grpcx.DialOptions, extra ...grpc.DialOption) (*Client, error) {
	conn, err := grpcx.Dial(ctx, addr, opts, extra...)
	if err != nil {
		return nil, fmt.Errorf("dial availability service: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) GetAvailableSlots(ctx context.Context, q availability.SlotQuery) (availability.Availability, error) {
	req, err := structpb.NewStruct(map[string]any{
		"provider_id": q.ProviderID,
		"service_id":  q.ServiceID,
		"date":        q.Date,
		"timezone":    q.Timezone,
	})
	if err != nil {
		return availability.Availability{}, err
	}
	var out availability.Availability
	if err := c.invoke(ctx, grpcserver.GetAvailableSlotsMethod, req, &out); err != nil {
		return availability.Availability{}, err
	}
	return out, nil
}

func (c *Client) IsSlotAvailable(ctx context.Context, check availability.SlotCheck) (availability.SlotDecision, error) {
	req, err := structpb.NewStruct(map[string]any{
		"provider_id":            check.ProviderID,
		"start_time":             check.Start.Format(time.RFC3339),
		"duration_minutes":       check.DurationMinutes,
		"exclude_appointment_id": check.ExcludeAppointmentID,
	})
	if err != nil {
		return availability.SlotDecision{}, err
	}
	var out availability.SlotDecision
	if err := c.invoke(ctx, grpcserver.IsSlotAvailableMethod, req, &out); err != nil {
		return availability.SlotDecision{}, err
	}
	return out, nil
}

// Healthy reports whether the availability service is SERVING.
func (c *Client) Healthy(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		return fromStatus("health check", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("availability service status %s", resp.GetStatus())
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct, out any) error {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return fromStatus(method, err)
	}
	return grpcserver.Decode(resp, out)
}

func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return availability.Transient(op, err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &availability.ValidationError{Field: "request", Msg: st.Message()}
	case codes.NotFound:
		return fmt.Errorf("%w: %s", availability.ErrNotFound, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return &availability.TransientError{Op: op, Err: err}
	default:
		return err
	}
}
