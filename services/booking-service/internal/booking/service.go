package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/md-rashed-zaman/apptbook/booking"

// Service owns every write to appointments. Each write runs in one
// transaction holding the provider's advisory lock, and re-validates the slot
// on that transaction before touching the row.
type Service struct {
	repo      *storage.Repository
	outbox    *outbox.Repository
	engine    *availability.Engine
	validator *availability.Validator
	metrics   *metrics.BookingMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Config struct {
	Repo      *storage.Repository
	Outbox    *outbox.Repository
	Engine    *availability.Engine
	Validator *availability.Validator
	Metrics   *metrics.BookingMetrics
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      cfg.Repo,
		outbox:    cfg.Outbox,
		engine:    cfg.Engine,
		validator: cfg.Validator,
		metrics:   cfg.Metrics,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       now,
	}
}

type BookRequest struct {
	ProviderID     string
	ServiceID      string
	StartTime      time.Time
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Notes          string
	IdempotencyKey string
}

type BookResult struct {
	Appointment model.Appointment
	// Replayed is set when the response comes from an earlier request with the same idempotency key.
	Replayed bool
}

type RescheduleRequest struct {
	AppointmentID string
	StartTime     time.Time
}

type CancelRequest struct {
	AppointmentID string
	Reason        string
}

// AvailableSlots lists bookable slots for one provider-local date.
func (s *Service) AvailableSlots(ctx context.Context, q availability.SlotQuery) (availability.Availability, error) {
	start := time.Now()
	res, err := s.engine.GetAvailableSlots(ctx, q)
	s.metrics.ObserveSlotQuery(res, err, time.Since(start))
	return res, err
}

// CheckSlot is a read-only pre-check. Only the commit path is authoritative.
func (s *Service) CheckSlot(ctx context.Context, c availability.SlotCheck) (availability.SlotDecision, error) {
	d, err := s.validator.IsSlotAvailable(ctx, c)
	s.metrics.ObserveSlotCheck(d, err)
	return d, err
}

func (s *Service) Book(ctx context.Context, req BookRequest) (res BookResult, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("provider_id", req.ProviderID),
		attribute.String("service_id", req.ServiceID),
	))
	defer func() { s.finish(span, "book", err) }()

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := validateUUID("provider_id", req.ProviderID); err != nil {
		return BookResult{}, err
	}
	if err := validateUUID("service_id", req.ServiceID); err != nil {
		return BookResult{}, err
	}
	if req.CustomerName == "" {
		return BookResult{}, &availability.ValidationError{Field: "customer_name", Msg: "is required"}
	}
	if req.StartTime.IsZero() {
		return BookResult{}, &availability.ValidationError{Field: "start_time", Msg: "is required"}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return BookResult{}, availability.Transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if req.IdempotencyKey != "" {
		rec, exists, err := s.repo.LockIdempotencyKey(ctx, tx, req.ProviderID, req.IdempotencyKey)
		if err != nil {
			return BookResult{}, availability.Transient("lock idempotency key", err)
		}
		if exists && rec.StatusCode > 0 {
			return replay(rec)
		}
	}

	txRepo := s.repo.WithTx(tx)
	policy, provider, err := s.loadPolicy(ctx, txRepo, req.ServiceID, req.ProviderID)
	if err != nil {
		return BookResult{}, err
	}
	appt := model.Appointment{
		ProviderID:      req.ProviderID,
		ServiceID:       req.ServiceID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		Notes:           strings.TrimSpace(req.Notes),
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: policy.DurationMinutes,
		Status:          availability.StatusScheduled,
	}

	if err := s.guardSlot(ctx, tx, txRepo, policy, provider, appt.Slot()); err != nil {
		if req.IdempotencyKey != "" && s.finalizeError(ctx, tx, req.ProviderID, req.IdempotencyKey, err) {
			if cerr := tx.Commit(ctx); cerr != nil {
				return BookResult{}, availability.Transient("commit", cerr)
			}
		}
		return BookResult{}, err
	}

	if _, err := s.repo.InsertAppointment(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			return BookResult{}, &availability.ConflictError{}
		}
		return BookResult{}, availability.Transient("insert appointment", err)
	}
	if err := s.emit(ctx, tx, outbox.EventAppointmentBooked, appt, nil, ""); err != nil {
		return BookResult{}, err
	}
	if req.IdempotencyKey != "" {
		body, err := json.Marshal(appt)
		if err != nil {
			return BookResult{}, err
		}
		if err := s.repo.FinalizeIdempotency(ctx, tx, req.ProviderID, req.IdempotencyKey, appt.ID, http.StatusCreated, body); err != nil {
			return BookResult{}, availability.Transient("finalize idempotency key", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return BookResult{}, &availability.ConflictError{}
		}
		return BookResult{}, availability.Transient("commit", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"start_time", appt.StartTime.Format(time.RFC3339),
	)
	return BookResult{Appointment: appt}, nil
}

func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reschedule", trace.WithAttributes(attribute.String("appointment_id", req.AppointmentID)))
	defer func() { s.finish(span, "reschedule", err) }()

	if err := validateUUID("appointment_id", req.AppointmentID); err != nil {
		return model.Appointment{}, err
	}
	if req.StartTime.IsZero() {
		return model.Appointment{}, &availability.ValidationError{Field: "start_time", Msg: "is required"}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Appointment{}, availability.Transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = s.loadForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.Blocking() || appt.Status == availability.StatusInProgress {
		return model.Appointment{}, &availability.ValidationError{Field: "appointment_id", Msg: "appointment in status " + string(appt.Status) + " cannot be rescheduled"}
	}

	txRepo := s.repo.WithTx(tx)
	policy, provider, err := s.loadPolicy(ctx, txRepo, appt.ServiceID, appt.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	previous := appt.StartTime
	appt.StartTime = req.StartTime.UTC()
	appt.DurationMinutes = policy.DurationMinutes

	check := appt.Slot()
	check.ExcludeAppointmentID = appt.ID
	if err := s.guardSlot(ctx, tx, txRepo, policy, provider, check); err != nil {
		return model.Appointment{}, err
	}
	updatedAt, err := s.repo.RescheduleAppointment(ctx, tx, appt.ID, appt.StartTime, appt.DurationMinutes)
	if err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, &availability.ConflictError{}
		}
		return model.Appointment{}, availability.Transient("reschedule appointment", err)
	}
	appt.UpdatedAt = updatedAt
	if err := s.emit(ctx, tx, outbox.EventAppointmentRescheduled, appt, &previous, ""); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, availability.Transient("commit", err)
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID,
		"from", previous.Format(time.RFC3339),
		"to", appt.StartTime.Format(time.RFC3339),
	)
	return appt, nil
}

// Cancel is idempotent: cancelling a cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(attribute.String("appointment_id", req.AppointmentID)))
	defer func() { s.finish(span, "cancel", err) }()

	if err := validateUUID("appointment_id", req.AppointmentID); err != nil {
		return model.Appointment{}, err
	}
	reason := strings.TrimSpace(req.Reason)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Appointment{}, availability.Transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = s.loadForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == availability.StatusCancelled {
		return appt, nil
	}
	if !appt.Status.Blocking() {
		return model.Appointment{}, &availability.ValidationError{Field: "appointment_id", Msg: "appointment in status " + string(appt.Status) + " cannot be cancelled"}
	}

	cancelledAt, err := s.repo.CancelAppointment(ctx, tx, appt.ID, reason)
	if err != nil {
		return model.Appointment{}, availability.Transient("cancel appointment", err)
	}
	appt.Status = availability.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = reason
	if err := s.emit(ctx, tx, outbox.EventAppointmentCancelled, appt, nil, reason); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, availability.Transient("commit", err)
	}

	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "provider_id", appt.ProviderID)
	return appt, nil
}

// Confirm moves a scheduled appointment to confirmed. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, appointmentID string) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Confirm", trace.WithAttributes(attribute.String("appointment_id", appointmentID)))
	defer func() { s.finish(span, "confirm", err) }()

	if err := validateUUID("appointment_id", appointmentID); err != nil {
		return model.Appointment{}, err
	}
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Appointment{}, availability.Transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = s.loadForUpdate(ctx, tx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	switch appt.Status {
	case availability.StatusConfirmed:
		return appt, nil
	case availability.StatusScheduled:
	default:
		return model.Appointment{}, &availability.ValidationError{Field: "appointment_id", Msg: "appointment in status " + string(appt.Status) + " cannot be confirmed"}
	}

	updatedAt, err := s.repo.UpdateStatus(ctx, tx, appt.ID, availability.StatusConfirmed)
	if err != nil {
		return model.Appointment{}, availability.Transient("confirm appointment", err)
	}
	appt.Status = availability.StatusConfirmed
	appt.UpdatedAt = updatedAt
	if err := s.emit(ctx, tx, outbox.EventAppointmentConfirmed, appt, nil, ""); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, availability.Transient("commit", err)
	}

	s.logger.Info("appointment confirmed", "appointment_id", appt.ID, "provider_id", appt.ProviderID)
	return appt, nil
}

// DenyReason is recorded on appointments an admin declined.
const DenyReason = "denied_by_admin"

// Deny is the admin's rejection of a scheduled appointment. It cancels the
// appointment with DenyReason and emits a denied event instead of a cancelled one.
func (s *Service) Deny(ctx context.Context, appointmentID string) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Deny", trace.WithAttributes(attribute.String("appointment_id", appointmentID)))
	defer func() { s.finish(span, "deny", err) }()

	if err := validateUUID("appointment_id", appointmentID); err != nil {
		return model.Appointment{}, err
	}
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Appointment{}, availability.Transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = s.loadForUpdate(ctx, tx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	switch {
	case appt.Status == availability.StatusCancelled && appt.CancelReason == DenyReason:
		return appt, nil
	case appt.Status != availability.StatusScheduled:
		return model.Appointment{}, &availability.ValidationError{Field: "appointment_id", Msg: "appointment in status " + string(appt.Status) + " cannot be denied"}
	}

	cancelledAt, err := s.repo.CancelAppointment(ctx, tx, appt.ID, DenyReason)
	if err != nil {
		return model.Appointment{}, availability.Transient("deny appointment", err)
	}
	appt.Status = availability.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = DenyReason
	if err := s.emit(ctx, tx, outbox.EventAppointmentDenied, appt, nil, DenyReason); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, availability.Transient("commit", err)
	}

	s.logger.Info("appointment denied", "appointment_id", appt.ID, "provider_id", appt.ProviderID)
	return appt, nil
}

func (s *Service) List(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error) {
	if err := validateUUID("provider_id", f.ProviderID); err != nil {
		return nil, err
	}
	if f.Status != "" && !knownStatus(f.Status) {
		return nil, &availability.ValidationError{Field: "status", Msg: "unknown status " + string(f.Status)}
	}
	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, availability.Transient("list appointments", err)
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

// guardSlot enforces the booking window and then runs the conflict check on
// tx while holding the provider lock.
func (s *Service) guardSlot(ctx context.Context, tx pgx.Tx, txRepo *storage.Repository, policy availability.ServicePolicy, provider availability.Provider, check availability.SlotCheck) error {
	loc, err := availability.LoadLocation(provider.Timezone)
	if err != nil {
		return err
	}
	now := s.now().In(loc)
	if !check.Start.After(now) {
		return &availability.ValidationError{Field: "start_time", Msg: availability.ReasonStartInPast}
	}
	date := availability.DateOf(check.Start.In(loc))
	if d := availability.ValidateDate(date, policy, now); !d.Valid {
		return &availability.ValidationError{Field: "start_time", Msg: d.Reason}
	}
	if date == availability.DateOf(now) {
		buffer := policy.BufferMinutes
		if buffer <= 0 {
			buffer = availability.DefaultBufferMinutes
		}
		if check.Start.Before(now.Add(time.Duration(buffer) * time.Minute)) {
			return &availability.ValidationError{Field: "start_time", Msg: "inside the same-day lead time"}
		}
	}

	if err := s.repo.LockProvider(ctx, tx, check.ProviderID); err != nil {
		return availability.Transient("lock provider", err)
	}
	decision, err := s.validator.WithStore(txRepo).IsSlotAvailable(ctx, check)
	if err != nil {
		return err
	}
	switch decision.Reason {
	case "":
		return nil
	case availability.ReasonAppointmentConflict:
		return &availability.ConflictError{Conflicts: decision.Conflicts}
	default:
		return &availability.ValidationError{Field: "start_time", Msg: decision.Reason}
	}
}

func (s *Service) loadPolicy(ctx context.Context, txRepo *storage.Repository, serviceID, providerID string) (availability.ServicePolicy, availability.Provider, error) {
	policy, err := txRepo.ServicePolicy(ctx, serviceID)
	if err != nil {
		return availability.ServicePolicy{}, availability.Provider{}, availability.Transient("load service", err)
	}
	if policy.DurationMinutes <= 0 {
		return availability.ServicePolicy{}, availability.Provider{}, &availability.ValidationError{Field: "service_id", Msg: "service has no duration"}
	}
	provider, err := txRepo.Provider(ctx, providerID)
	if err != nil {
		return availability.ServicePolicy{}, availability.Provider{}, availability.Transient("load provider", err)
	}
	return policy, provider, nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	appt, err := s.repo.GetAppointmentForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, &availability.NotFoundError{Entity: "appointment", ID: appointmentID}
		}
		return model.Appointment{}, availability.Transient("load appointment", err)
	}
	return appt, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, previous *time.Time, reason string) error {
	evt, err := outbox.AppointmentEvent(eventType, appt, previous, reason, s.now())
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return availability.Transient("write outbox event", err)
	}
	return nil
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	s.metrics.ObserveCommit(operation, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("booking write rejected", "operation", operation, "outcome", metrics.Outcome(err), "err", err)
	}
	span.End()
}

func validateUUID(field, id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return &availability.ValidationError{Field: field, Msg: "must be a UUID"}
	}
	return nil
}

func knownStatus(s availability.AppointmentStatus) bool {
	switch s {
	case availability.StatusScheduled, availability.StatusConfirmed, availability.StatusInProgress,
		availability.StatusCancelled, availability.StatusCompleted, availability.StatusNoShow:
		return true
	}
	return false
}
