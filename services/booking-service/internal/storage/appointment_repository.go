package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type IdempotencyRecord struct {
	ProviderID      string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// ListFilter narrows ListAppointments. Zero values are ignored.
type ListFilter struct {
	ProviderID string
	From       time.Time
	To         time.Time
	Status     availability.AppointmentStatus
	Limit      int
}

const appointmentColumns = `id::text, provider_id::text, service_id::text, customer_name,
			COALESCE(customer_email, ''), COALESCE(customer_phone, ''), COALESCE(notes, ''),
			start_time, duration_minutes, status, cancelled_at, COALESCE(cancellation_reason, ''),
			created_at, updated_at`

// LockIdempotencyKey claims key for providerID inside tx. found is true when a
// previous request already owns the key; its record is returned row-locked.
func (r *Repository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, providerID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, providerID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (provider_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (provider_id, idempotency_key) DO NOTHING
	`, providerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, providerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *Repository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, providerID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE provider_id = $1 AND idempotency_key = $2
	`, providerID, key, appointmentID, statusCode, response)
	return err
}

// InsertAppointment stores appt and fills its ID and timestamps. It must only
// be called after the slot was validated in the same transaction.
func (r *Repository) InsertAppointment(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, provider_id, service_id, customer_name, customer_email, customer_phone, notes,
			 start_time, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, appt.ID, appt.ProviderID, appt.ServiceID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.Notes, appt.StartTime, appt.DurationMinutes, string(appt.Status)).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return "", err
	}
	return appt.ID, nil
}

func (r *Repository) GetAppointment(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, appointmentID))
}

func (r *Repository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
}

func (r *Repository) RescheduleAppointment(ctx context.Context, tx pgx.Tx, appointmentID string, start time.Time, durationMinutes int) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
			duration_minutes = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appointmentID, start, durationMinutes).Scan(&updatedAt)
	return updatedAt, err
}

func (r *Repository) CancelAppointment(ctx context.Context, tx pgx.Tx, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status availability.AppointmentStatus) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appointmentID, string(status)).Scan(&updatedAt)
	return updatedAt, err
}

func (r *Repository) ListAppointments(ctx context.Context, f ListFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND ($2::timestamptz IS NULL OR start_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
			AND ($4 = '' OR status = $4)
		ORDER BY start_time ASC
		LIMIT $5
	`, f.ProviderID, from, to, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt        model.Appointment
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.ServiceID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.Notes,
		&appt.StartTime,
		&appt.DurationMinutes,
		&status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = availability.AppointmentStatus(status)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func (r *Repository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, providerID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT provider_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE provider_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, providerID, key).Scan(
		&rec.ProviderID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
