package scheduling

import (
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/catalog"
	"clinic-booking/internal/fees"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the appointment lifecycle state. Pending is initial; Canceled,
// Completed and NoShow are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCanceled  Status = "CANCELED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// DefaultSlotDurationMinutes is used when an appointment has no service.
const DefaultSlotDurationMinutes = 30

type Patient struct {
	ID     int64     `json:"-" dbfield:"id"`
	UserID int64     `json:"-" dbfield:"user_id"`
	UUID   uuid.UUID `json:"uuid" dbfield:"uuid"`
	Name   string    `json:"name" dbfield:"name"`
	Email  string    `json:"email" dbfield:"email"`
}

type Appointment struct {
	ID                 int64             `json:"-" dbfield:"id"`
	UUID               uuid.UUID         `json:"uuid" dbfield:"uuid"`
	PatientID          int64             `json:"-" dbfield:"patient_id"`
	DoctorID           int64             `json:"-" dbfield:"doctor_id"`
	ClinicID           int64             `json:"-" dbfield:"clinic_id"`
	ServiceID          *int64            `json:"-" dbfield:"service_id"`
	Patient            *Patient          `json:"patient,omitempty"`
	Doctor             *catalog.Doctor   `json:"doctor,omitempty"`
	Service            *catalog.Service  `json:"service,omitempty"`
	Date               time.Time         `json:"date" dbfield:"date"`
	StartTime          catalog.TimeOfDay `json:"start_time" dbfield:"start_time"`
	EndTime            catalog.TimeOfDay `json:"end_time" dbfield:"end_time"`
	Status             Status            `json:"status" dbfield:"status"`
	BasePrice          decimal.Decimal   `json:"base_price" dbfield:"base_price"`
	CancellationFee    decimal.Decimal   `json:"cancellation_fee" dbfield:"cancellation_fee"`
	LatePaymentFee     decimal.Decimal   `json:"late_payment_fee" dbfield:"late_payment_fee"`
	TotalAmount        decimal.Decimal   `json:"total_amount" dbfield:"total_amount"`
	IsPaid             bool              `json:"is_paid" dbfield:"is_paid"`
	PaidAt             *time.Time        `json:"paid_at" dbfield:"paid_at"`
	PaymentDueDate     *time.Time        `json:"payment_due_date" dbfield:"payment_due_date"`
	ConfirmedAt        *time.Time        `json:"confirmed_at" dbfield:"confirmed_at"`
	CanceledAt         *time.Time        `json:"canceled_at" dbfield:"canceled_at"`
	CancellationReason *string           `json:"cancellation_reason" dbfield:"cancellation_reason"`
	CreatedAt          time.Time         `json:"created_at" dbfield:"created_at"`
}

// StartAt anchors the appointment's start on its date in the given location.
func (a Appointment) StartAt(loc *time.Location) time.Time {
	return a.StartTime.At(a.Date, loc)
}

// Recompute stamps the derived fields, in order: end time from the service
// duration, base price from the service when unset, payment due date exactly
// once, and the total amount. It must run before every persist.
func (a *Appointment) Recompute(policy fees.Policy, loc *time.Location) {
	duration := DefaultSlotDurationMinutes
	if a.Service != nil {
		duration = int(a.Service.DurationMinutes)
	}
	a.EndTime = a.StartTime.Add(duration)
	if a.BasePrice.IsZero() && a.Service != nil {
		a.BasePrice = a.Service.Price
	}
	if a.PaymentDueDate == nil {
		dueDate := policy.DueDate(a.StartAt(loc))
		a.PaymentDueDate = &dueDate
	}
	a.TotalAmount = a.BasePrice.Add(a.CancellationFee).Add(a.LatePaymentFee)
}

// Confirm moves the appointment from Pending to Confirmed, returning the
// prior and new status. No field is mutated on a disallowed transition.
func (a *Appointment) Confirm(now time.Time) (Status, Status, error) {
	if a.Status != StatusPending {
		return a.Status, a.Status, NewTransitionError("confirm", a.Status)
	}
	from := a.Status
	a.Status = StatusConfirmed
	a.ConfirmedAt = &now
	return from, a.Status, nil
}

// Cancel moves the appointment to Canceled, stamping the cancellation fields
// and the given fee, and recomputes the total amount.
func (a *Appointment) Cancel(now time.Time, reason string, fee decimal.Decimal) (Status, Status, error) {
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return a.Status, a.Status, NewTransitionError("cancel", a.Status)
	}
	from := a.Status
	a.Status = StatusCanceled
	a.CanceledAt = &now
	a.CancellationReason = &reason
	a.CancellationFee = fee
	a.TotalAmount = a.BasePrice.Add(a.CancellationFee).Add(a.LatePaymentFee)
	return from, a.Status, nil
}

// Complete moves the appointment from Confirmed to Completed.
func (a *Appointment) Complete() (Status, Status, error) {
	if a.Status != StatusConfirmed {
		return a.Status, a.Status, NewTransitionError("complete", a.Status)
	}
	from := a.Status
	a.Status = StatusCompleted
	return from, a.Status, nil
}

// MarkNoShow moves the appointment from Confirmed to NoShow.
func (a *Appointment) MarkNoShow() (Status, Status, error) {
	if a.Status != StatusConfirmed {
		return a.Status, a.Status, NewTransitionError("mark as no-show", a.Status)
	}
	from := a.Status
	a.Status = StatusNoShow
	return from, a.Status, nil
}

// BookingRequest is the payload of a booking attempt.
type BookingRequest struct {
	DoctorUUID  uuid.UUID         `json:"doctor_uuid"`
	ServiceUUID *uuid.UUID        `json:"service_uuid,omitempty"`
	Date        string            `json:"date"`
	StartTime   catalog.TimeOfDay `json:"start_time"`
}

// Validate checks if the given request is valid.
func (b BookingRequest) Validate() error {
	if b.DoctorUUID == (uuid.UUID{}) {
		return apierrors.NewValidationError("doctor_uuid", "required")
	}
	if _, err := b.ParsedDate(); err != nil {
		return apierrors.NewValidationError("date", "must be formatted as 2006-01-02")
	}
	return nil
}

// ParsedDate parses the request date.
func (b BookingRequest) ParsedDate() (time.Time, error) {
	return time.Parse("2006-01-02", b.Date)
}

// CancellationRequest is the payload of a cancellation attempt.
type CancellationRequest struct {
	Reason string `json:"reason"`
}
