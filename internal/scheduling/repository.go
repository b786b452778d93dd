package scheduling

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/catalog"
	"clinic-booking/internal/database"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	appointmentColumns = "id, uuid, patient_id, doctor_id, clinic_id, service_id, date, start_time, end_time, status, base_price, cancellation_fee, late_payment_fee, total_amount, is_paid, paid_at, payment_due_date, confirmed_at, canceled_at, cancellation_reason, created_at"

	findPatientByUserIDQuery = "SELECT id, uuid, user_id, name, email FROM tb_patient WHERE user_id = $1"
	findPatientByIDQuery     = "SELECT id, uuid, user_id, name, email FROM tb_patient WHERE id = $1"

	findAppointmentByUUIDQuery    = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE uuid = $1"
	listAppointmentsByPatientQuery = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE patient_id = $1 ORDER BY date DESC, start_time DESC"
	listAppointmentsByDoctorQuery  = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE doctor_id = $1 ORDER BY date DESC, start_time DESC"
	listOverdueUnpaidQuery         = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE is_paid = FALSE AND payment_due_date IS NOT NULL AND payment_due_date < $1 AND status IN ('CONFIRMED', 'COMPLETED')"

	listBookedStartTimesQuery          = "SELECT start_time FROM tb_appointment WHERE doctor_id = $1 AND date = $2 AND status IN ('PENDING', 'CONFIRMED')"
	listBookedStartTimesExcludingQuery = "SELECT start_time FROM tb_appointment WHERE doctor_id = $1 AND date = $2 AND status IN ('PENDING', 'CONFIRMED') AND uuid <> $3"

	insertAppointmentQuery = "INSERT INTO tb_appointment (uuid, patient_id, doctor_id, clinic_id, service_id, date, start_time, end_time, status, base_price, cancellation_fee, late_payment_fee, total_amount, payment_due_date) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)"
	updateAppointmentQuery = "UPDATE tb_appointment SET status = $2, end_time = $3, base_price = $4, cancellation_fee = $5, late_payment_fee = $6, total_amount = $7, payment_due_date = $8, confirmed_at = $9, canceled_at = $10, cancellation_reason = $11 WHERE id = $1"
	markPaidQuery          = "UPDATE tb_appointment SET is_paid = TRUE, paid_at = $2 WHERE id = $1"
	applyLateFeeQuery      = "UPDATE tb_appointment SET late_payment_fee = $2, total_amount = base_price + cancellation_fee + $2 WHERE id = $1 AND late_payment_fee < $2"

	uniqueViolationCode = pq.ErrorCode("23505")
)

// Repository provides access to scheduling data.
type Repository interface {

	// FindPatientByUserID finds a patient by its user ID.
	FindPatientByUserID(ctx context.Context, userID int64) (*Patient, error)

	// FindPatientByID finds a patient by its ID.
	FindPatientByID(ctx context.Context, ID int64) (*Patient, error)

	// FindAppointmentByUUID finds an appointment by its UUID.
	FindAppointmentByUUID(ctx context.Context, uuid uuid.UUID) (*Appointment, error)

	// ListAppointmentsByPatient lists a patient's appointments, most recent first.
	ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]*Appointment, error)

	// ListAppointmentsByDoctor lists a doctor's appointments, most recent first.
	ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error)

	// ListBookedStartTimes lists the start times holding a Pending or Confirmed
	// appointment for the doctor on the given date, optionally excluding one appointment.
	ListBookedStartTimes(ctx context.Context, doctorID int64, date time.Time, excluding *uuid.UUID) ([]catalog.TimeOfDay, error)

	// ListOverdueUnpaid lists the unpaid Confirmed or Completed appointments past due at asOf.
	ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]*Appointment, error)

	// InsertAppointment inserts a new appointment through the given querier.
	// A lost slot race surfaces as a conflict error.
	InsertAppointment(ctx context.Context, q database.Querier, appointment Appointment) error

	// UpdateAppointment persists the appointment's mutable fields through the given querier.
	UpdateAppointment(ctx context.Context, q database.Querier, appointment Appointment) error

	// MarkPaid stamps the appointment as paid through the given querier.
	MarkPaid(ctx context.Context, q database.Querier, appointmentID int64, paidAt time.Time) error

	// ApplyLateFee stores the given late fee only if it exceeds the stored one,
	// recomputing the total, and reports whether it was applied.
	ApplyLateFee(ctx context.Context, appointmentID int64, fee decimal.Decimal) (bool, error)
}

type defaultRepository struct {
	dbConn database.Connection
}

// newRepository creates a new Repository.
func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) findPatient(ctx context.Context, query string, param interface{}) (*Patient, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, query, param)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	patient := new(Patient)
	for rows.Next() {
		if err = database.TransformRow(rows, patient); err != nil {
			return nil, err
		}
		if patient.ID > 0 {
			return patient, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) FindPatientByUserID(ctx context.Context, userID int64) (*Patient, error) {
	return d.findPatient(ctx, findPatientByUserIDQuery, userID)
}

func (d defaultRepository) FindPatientByID(ctx context.Context, ID int64) (*Patient, error) {
	return d.findPatient(ctx, findPatientByIDQuery, ID)
}

func (d defaultRepository) FindAppointmentByUUID(ctx context.Context, uuid uuid.UUID) (*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findAppointmentByUUIDQuery, uuid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	appointment := new(Appointment)
	for rows.Next() {
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		if appointment.ID > 0 {
			return appointment, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) listAppointments(ctx context.Context, query string, params ...interface{}) ([]*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	appointments := make([]*Appointment, 0)
	for rows.Next() {
		appointment := new(Appointment)
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	return appointments, nil
}

func (d defaultRepository) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	return d.listAppointments(ctx, listAppointmentsByPatientQuery, patientID)
}

func (d defaultRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error) {
	return d.listAppointments(ctx, listAppointmentsByDoctorQuery, doctorID)
}

func (d defaultRepository) ListBookedStartTimes(ctx context.Context, doctorID int64, date time.Time, excluding *uuid.UUID) ([]catalog.TimeOfDay, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	query := listBookedStartTimesQuery
	params := []interface{}{doctorID, date}
	if excluding != nil {
		query = listBookedStartTimesExcludingQuery
		params = append(params, *excluding)
	}
	rows, err := d.dbConn.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	startTimes := make([]catalog.TimeOfDay, 0)
	for rows.Next() {
		var startTime catalog.TimeOfDay
		if err = rows.Scan(&startTime); err != nil {
			return nil, err
		}
		startTimes = append(startTimes, startTime)
	}
	return startTimes, nil
}

func (d defaultRepository) ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]*Appointment, error) {
	return d.listAppointments(ctx, listOverdueUnpaidQuery, asOf)
}

func (d defaultRepository) InsertAppointment(ctx context.Context, q database.Querier, appointment Appointment) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 14)
	params[0] = appointment.UUID
	params[1] = appointment.PatientID
	params[2] = appointment.DoctorID
	params[3] = appointment.ClinicID
	params[4] = appointment.ServiceID
	params[5] = appointment.Date
	params[6] = appointment.StartTime
	params[7] = appointment.EndTime
	params[8] = appointment.Status
	params[9] = appointment.BasePrice
	params[10] = appointment.CancellationFee
	params[11] = appointment.LatePaymentFee
	params[12] = appointment.TotalAmount
	params[13] = appointment.PaymentDueDate
	result, err := q.ExecContext(ctx, insertAppointmentQuery, params...)
	if err != nil {
		if pqErr, isPqErr := err.(*pq.Error); isPqErr && pqErr.Code == uniqueViolationCode {
			return apierrors.NewConflictError(ErrSlotAlreadyBooked)
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("appointment not inserted")
	}
	return nil
}

func (d defaultRepository) UpdateAppointment(ctx context.Context, q database.Querier, appointment Appointment) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 11)
	params[0] = appointment.ID
	params[1] = appointment.Status
	params[2] = appointment.EndTime
	params[3] = appointment.BasePrice
	params[4] = appointment.CancellationFee
	params[5] = appointment.LatePaymentFee
	params[6] = appointment.TotalAmount
	params[7] = appointment.PaymentDueDate
	params[8] = appointment.ConfirmedAt
	params[9] = appointment.CanceledAt
	params[10] = appointment.CancellationReason
	result, err := q.ExecContext(ctx, updateAppointmentQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrAppointmentNotFound)
	}
	return nil
}

func (d defaultRepository) MarkPaid(ctx context.Context, q database.Querier, appointmentID int64, paidAt time.Time) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := q.ExecContext(ctx, markPaidQuery, appointmentID, paidAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrAppointmentNotFound)
	}
	return nil
}

func (d defaultRepository) ApplyLateFee(ctx context.Context, appointmentID int64, fee decimal.Decimal) (bool, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := d.dbConn.DB().ExecContext(ctx, applyLateFeeQuery, appointmentID, fee)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
