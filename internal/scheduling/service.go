package scheduling

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/auth"
	"clinic-booking/internal/catalog"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/events"
	"clinic-booking/internal/fees"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refunder settles the refund owed when a paid appointment is canceled. It is
// implemented by the payment ledger and wired in at startup, and runs inside
// the cancellation transaction.
type Refunder interface {
	RefundCancellation(ctx context.Context, q database.Querier, appointment Appointment, amount decimal.Decimal, reason string) error
}

// Service drives the booking engine: slot queries, booking, the appointment
// lifecycle and the late-fee sweep.
type Service interface {

	// AvailableSlots lists the bookable start times for the doctor on the given date, as "HH:MM" strings.
	AvailableSlots(ctx context.Context, doctorUUID uuid.UUID, date time.Time) ([]string, error)

	// Book books a new appointment for the patient associated to the given user.
	Book(ctx context.Context, user auth.User, request BookingRequest) (*Appointment, error)

	// ListAppointments lists the appointments visible to the given user.
	ListAppointments(ctx context.Context, user auth.User) ([]*Appointment, error)

	// GetAppointment gets an appointment visible to the given user.
	GetAppointment(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// Confirm confirms a pending appointment owned by the given doctor user.
	Confirm(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// Cancel cancels a future appointment, levying the cancellation fee when
	// the notice is short. A paid appointment canceled inside the fee window
	// is partially refunded in the same transaction.
	Cancel(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, reason string) (*Appointment, error)

	// Complete completes a confirmed appointment owned by the given doctor user.
	Complete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// MarkNoShow marks a confirmed appointment as a no-show. Administrative only.
	MarkNoShow(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error)

	// ApplyLateFees recomputes late fees for overdue unpaid appointments,
	// applying each only if greater than the stored one. Returns how many were applied.
	ApplyLateFees(ctx context.Context, now time.Time) (int, error)

	// FindAppointment finds an appointment by its UUID without an ownership check.
	FindAppointment(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error)

	// FindPatient finds the patient associated to the given user, if any.
	FindPatient(ctx context.Context, user auth.User) (*Patient, error)

	// SettlePayment stamps the appointment as paid through the given querier,
	// so the caller can tie it to the payment record atomically.
	SettlePayment(ctx context.Context, q database.Querier, appointmentID int64, paidAt time.Time) error

	// SetRefunder wires in the refund implementation.
	SetRefunder(refunder Refunder)
}

type defaultService struct {
	config     configs.Config
	dbConn     database.Connection
	repository Repository
	catalog    catalog.Reader
	publisher  events.Publisher
	policy     fees.Policy
	refunder   Refunder
}

// NewService creates a new scheduling service.
func NewService(config configs.Config, dbConn database.Connection, catalogReader catalog.Reader, publisher events.Publisher) Service {
	return &defaultService{
		config:     config,
		dbConn:     dbConn,
		repository: newRepository(dbConn),
		catalog:    catalogReader,
		publisher:  publisher,
		policy: fees.Policy{
			CancellationFeePercent: config.CancellationFeePercent(),
			WeeklyLateFeePercent:   config.WeeklyLateFeePercent(),
			MaxLateFeePercent:      config.MaxLateFeePercent(),
			PaymentDueDays:         config.PaymentDueDays(),
		},
	}
}

func (d *defaultService) SetRefunder(refunder Refunder) {
	d.refunder = refunder
}

// dateOnly normalizes a timestamp to its calendar date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (d *defaultService) AvailableSlots(ctx context.Context, doctorUUID uuid.UUID, date time.Time) ([]string, error) {
	doctor, err := d.catalog.FindDoctor(ctx, doctorUUID)
	if err != nil {
		return nil, err
	}
	date = dateOnly(date)
	workingHours, err := d.catalog.ActiveWorkingHours(ctx, doctor.ID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	dayOff, err := d.catalog.DayOffOn(ctx, doctor.ID, date)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	booked, err := d.repository.ListBookedStartTimes(ctx, doctor.ID, date, nil)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	now := time.Now().In(d.config.Timezone())
	var cutoff *catalog.TimeOfDay
	if dateOnly(now).Equal(date) {
		current := catalog.NewTimeOfDay(now.Hour(), now.Minute())
		cutoff = &current
	}
	slots := AvailableSlots(workingHours, dayOff, booked, d.config.SlotDurationMinutes(), cutoff)
	formatted := make([]string, 0, len(slots))
	for _, slot := range slots {
		formatted = append(formatted, slot.String())
	}
	return formatted, nil
}

func (d *defaultService) Book(ctx context.Context, user auth.User, request BookingRequest) (*Appointment, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	patient, err := d.repository.FindPatientByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if patient == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyPatientCanBook), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	doctor, err := d.catalog.FindDoctor(ctx, request.DoctorUUID)
	if err != nil {
		return nil, err
	}
	var service *catalog.Service
	if request.ServiceUUID != nil {
		if service, err = d.catalog.FindService(ctx, *request.ServiceUUID); err != nil {
			return nil, err
		}
	}
	requestedDate, err := request.ParsedDate()
	if err != nil {
		return nil, apierrors.NewValidationError("date", ErrInvalidDateReference)
	}
	date := dateOnly(requestedDate)
	now := time.Now().In(d.config.Timezone())
	snapshot, err := d.loadSnapshot(ctx, doctor.ID, date, now, nil)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if err = Validate(*snapshot, date, request.StartTime); err != nil {
		return nil, err
	}
	appointmentUUID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	appointment := &Appointment{
		UUID:      appointmentUUID,
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ClinicID:  doctor.ClinicID,
		Patient:   patient,
		Doctor:    doctor,
		Service:   service,
		Date:      date,
		StartTime: request.StartTime,
		Status:    StatusPending,
	}
	if service != nil {
		appointment.ServiceID = &service.ID
	}
	appointment.Recompute(d.policy, d.config.Timezone())
	err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		return d.repository.InsertAppointment(ctx, q, *appointment)
	})
	if err != nil {
		return nil, err
	}
	d.publisher.Publish(ctx, events.AppointmentCreatedEvent, events.AppointmentCreated{
		AppointmentUUID: appointment.UUID,
		PatientUUID:     patient.UUID,
		DoctorUUID:      doctor.UUID,
		DoctorName:      doctor.Name,
		Date:            appointment.Date,
		StartTime:       appointment.StartTime.String(),
		TotalAmount:     appointment.TotalAmount,
	})
	return appointment, nil
}

// loadSnapshot loads the schedule data the validator runs against.
func (d *defaultService) loadSnapshot(ctx context.Context, doctorID int64, date time.Time, now time.Time, excluding *uuid.UUID) (*Snapshot, error) {
	workingHours, err := d.catalog.ActiveWorkingHours(ctx, doctorID, date.Weekday())
	if err != nil {
		return nil, err
	}
	dayOff, err := d.catalog.DayOffOn(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	booked, err := d.repository.ListBookedStartTimes(ctx, doctorID, date, excluding)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Today:        dateOnly(now),
		HorizonDays:  d.config.BookingHorizonDays(),
		WorkingHours: workingHours,
		DayOff:       dayOff,
		BookedStarts: booked,
	}, nil
}

func (d *defaultService) ListAppointments(ctx context.Context, user auth.User) ([]*Appointment, error) {
	switch user.Role {
	case auth.PatientRole:
		patient, err := d.repository.FindPatientByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if patient == nil {
			return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyPatientCanBook), apierrors.WithHTTPStatusCode(http.StatusForbidden))
		}
		return d.repository.ListAppointmentsByPatient(ctx, patient.ID)
	case auth.DoctorRole:
		doctor, err := d.catalog.FindDoctorByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if doctor == nil {
			return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrNotAppointmentDoctor), apierrors.WithHTTPStatusCode(http.StatusForbidden))
		}
		return d.repository.ListAppointmentsByDoctor(ctx, doctor.ID)
	}
	return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrAppointmentNotFound), apierrors.WithHTTPStatusCode(http.StatusForbidden))
}

func (d *defaultService) FindAppointment(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.repository.FindAppointmentByUUID(ctx, appointmentUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if appointment == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrAppointmentNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	return appointment, nil
}

func (d *defaultService) FindPatient(ctx context.Context, user auth.User) (*Patient, error) {
	return d.repository.FindPatientByUserID(ctx, user.ID)
}

func (d *defaultService) SettlePayment(ctx context.Context, q database.Querier, appointmentID int64, paidAt time.Time) error {
	return d.repository.MarkPaid(ctx, q, appointmentID, paidAt)
}

// authorize checks if the given user may act on the appointment.
func (d *defaultService) authorize(ctx context.Context, user auth.User, appointment Appointment) error {
	switch user.Role {
	case auth.AdminRole:
		return nil
	case auth.PatientRole:
		patient, err := d.repository.FindPatientByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if patient == nil || patient.ID != appointment.PatientID {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrNotAppointmentOwner), apierrors.WithHTTPStatusCode(http.StatusForbidden))
		}
		return nil
	case auth.DoctorRole:
		doctor, err := d.catalog.FindDoctorByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if doctor == nil || doctor.ID != appointment.DoctorID {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrNotAppointmentDoctor), apierrors.WithHTTPStatusCode(http.StatusForbidden))
		}
		return nil
	}
	return apierrors.NewAPIError(apierrors.WithDetail(ErrAppointmentNotFound), apierrors.WithHTTPStatusCode(http.StatusForbidden))
}

func (d *defaultService) GetAppointment(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.FindAppointment(ctx, appointmentUUID)
	if err != nil {
		return nil, err
	}
	if err = d.authorize(ctx, user, *appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// persistTransition recomputes derived fields, persists the appointment and
// emits the status-changed event.
func (d *defaultService) persistTransition(ctx context.Context, appointment *Appointment, from Status, to Status) error {
	appointment.Recompute(d.policy, d.config.Timezone())
	err := database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		return d.repository.UpdateAppointment(ctx, q, *appointment)
	})
	if err != nil {
		return err
	}
	d.publishStatusChanged(ctx, *appointment, from, to)
	return nil
}

func (d *defaultService) publishStatusChanged(ctx context.Context, appointment Appointment, from Status, to Status) {
	changed := events.AppointmentStatusChanged{
		AppointmentUUID: appointment.UUID,
		OldStatus:       string(from),
		NewStatus:       string(to),
		Date:            appointment.Date,
		StartTime:       appointment.StartTime.String(),
	}
	if appointment.Patient != nil {
		changed.PatientUUID = appointment.Patient.UUID
	}
	if appointment.Doctor != nil {
		changed.DoctorUUID = appointment.Doctor.UUID
	}
	d.publisher.Publish(ctx, events.AppointmentStatusChangedEvent, changed)
}

func (d *defaultService) Confirm(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.GetAppointment(ctx, user, appointmentUUID)
	if err != nil {
		return nil, err
	}
	now := time.Now().In(d.config.Timezone())
	from, to, err := appointment.Confirm(now)
	if err != nil {
		return nil, err
	}
	if err = d.persistTransition(ctx, appointment, from, to); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (d *defaultService) Cancel(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, reason string) (*Appointment, error) {
	appointment, err := d.GetAppointment(ctx, user, appointmentUUID)
	if err != nil {
		return nil, err
	}
	now := time.Now().In(d.config.Timezone())
	startAt := appointment.StartAt(d.config.Timezone())
	if !startAt.After(now) {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrAppointmentAlreadyBegun), apierrors.WithHTTPStatusCode(http.StatusUnprocessableEntity))
	}
	fee := d.policy.CancellationFee(appointment.BasePrice, startAt, now)
	from, to, err := appointment.Cancel(now, reason, fee)
	if err != nil {
		return nil, err
	}
	appointment.Recompute(d.policy, d.config.Timezone())
	err = database.WithinTransaction(ctx, d.dbConn, func(q database.Querier) error {
		if err := d.repository.UpdateAppointment(ctx, q, *appointment); err != nil {
			return err
		}
		if appointment.IsPaid && fee.IsPositive() && d.refunder != nil {
			refund := appointment.BasePrice.Sub(fee)
			if refund.IsPositive() {
				return d.refunder.RefundCancellation(ctx, q, *appointment, refund, reason)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.publishStatusChanged(ctx, *appointment, from, to)
	return appointment, nil
}

func (d *defaultService) Complete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.GetAppointment(ctx, user, appointmentUUID)
	if err != nil {
		return nil, err
	}
	from, to, err := appointment.Complete()
	if err != nil {
		return nil, err
	}
	if err = d.persistTransition(ctx, appointment, from, to); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (d *defaultService) MarkNoShow(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.FindAppointment(ctx, appointmentUUID)
	if err != nil {
		return nil, err
	}
	from, to, err := appointment.MarkNoShow()
	if err != nil {
		return nil, err
	}
	if err = d.persistTransition(ctx, appointment, from, to); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (d *defaultService) ApplyLateFees(ctx context.Context, now time.Time) (int, error) {
	overdue, err := d.repository.ListOverdueUnpaid(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	applied := 0
	for _, appointment := range overdue {
		fee := d.policy.LatePaymentFee(appointment.BasePrice, appointment.IsPaid, appointment.PaymentDueDate, now)
		if !fee.GreaterThan(appointment.LatePaymentFee) {
			continue
		}
		wasApplied, err := d.repository.ApplyLateFee(ctx, appointment.ID, fee)
		if err != nil {
			return applied, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if wasApplied {
			applied++
		}
	}
	return applied, nil
}
