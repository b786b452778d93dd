// Package events carries the domain events emitted by the booking engine so
// the notification collaborator can react without querying it back.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AppointmentCreatedEvent       = "appointment_created"
	AppointmentStatusChangedEvent = "appointment_status_changed"
	PaymentCompletedEvent         = "payment_completed"
	PaymentFailedEvent            = "payment_failed"
)

// AppointmentCreated is emitted once a booking request has been accepted and
// the appointment persisted.
type AppointmentCreated struct {
	AppointmentUUID uuid.UUID       `json:"appointment_uuid"`
	PatientUUID     uuid.UUID       `json:"patient_uuid"`
	DoctorUUID      uuid.UUID       `json:"doctor_uuid"`
	DoctorName      string          `json:"doctor_name"`
	Date            time.Time       `json:"date"`
	StartTime       string          `json:"start_time"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// AppointmentStatusChanged is emitted by every lifecycle transition, carrying
// both the prior and the new status.
type AppointmentStatusChanged struct {
	AppointmentUUID uuid.UUID `json:"appointment_uuid"`
	PatientUUID     uuid.UUID `json:"patient_uuid"`
	DoctorUUID      uuid.UUID `json:"doctor_uuid"`
	OldStatus       string    `json:"old_status"`
	NewStatus       string    `json:"new_status"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"start_time"`
}

// PaymentCompleted is emitted when a payment settles its appointment.
type PaymentCompleted struct {
	PaymentUUID     uuid.UUID       `json:"payment_uuid"`
	AppointmentUUID uuid.UUID       `json:"appointment_uuid"`
	PatientUUID     uuid.UUID       `json:"patient_uuid"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionID   string          `json:"transaction_id"`
}

// PaymentFailed is emitted when the gateway rejects a payment attempt.
type PaymentFailed struct {
	PaymentUUID     uuid.UUID       `json:"payment_uuid"`
	AppointmentUUID uuid.UUID       `json:"appointment_uuid"`
	PatientUUID     uuid.UUID       `json:"patient_uuid"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
}

// Publisher determines the methods used to hand domain events to whatever
// sink the deployment wires in.
type Publisher interface {

	// Publish publishes the given event under the given name. Publishing must
	// never fail a business operation, so implementations report delivery
	// problems through their own channel instead of returning an error.
	Publish(ctx context.Context, name string, event interface{})
}
