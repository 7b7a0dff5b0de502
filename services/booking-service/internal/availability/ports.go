package availability

import (
	"context"
	"time"
)

// ScheduleRepository returns the provider's recurring blocks for one weekday.
// Inactive blocks may be included; the engine filters them.
type ScheduleRepository interface {
	ScheduleBlocks(ctx context.Context, providerID string, weekday time.Weekday) ([]ScheduleBlock, error)
}

type ExceptionRepository interface {
	Exceptions(ctx context.Context, providerID string, date Date) ([]Exception, error)
}

// AppointmentRepository returns blocking appointments overlapping window,
// leaving out excludeID when it is not empty.
type AppointmentRepository interface {
	BlockingAppointments(ctx context.Context, providerID string, window Interval, excludeID string) ([]BlockingAppointment, error)
}

// ProviderRepository and ServiceRepository return a *NotFoundError for unknown ids.
type ProviderRepository interface {
	Provider(ctx context.Context, providerID string) (Provider, error)
}

type ServiceRepository interface {
	ServicePolicy(ctx context.Context, serviceID string) (ServicePolicy, error)
}

// Store is everything the engine reads.
type Store interface {
	ScheduleRepository
	ExceptionRepository
	AppointmentRepository
	ProviderRepository
	ServiceRepository
}

// ValidatorStore is the read set of the conflict check. It is satisfied by a
// transaction-bound repository.
type ValidatorStore interface {
	ScheduleRepository
	ExceptionRepository
	AppointmentRepository
	ProviderRepository
}
