package catalog

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/database"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	findDoctorByUUIDQuery   = "SELECT id, uuid, user_id, clinic_id, name, email, specialty FROM tb_doctor WHERE uuid = $1"
	findDoctorByUserIDQuery = "SELECT id, uuid, user_id, clinic_id, name, email, specialty FROM tb_doctor WHERE user_id = $1"
	findClinicByIDQuery     = "SELECT id, uuid, name, address, phone FROM tb_clinic WHERE id = $1"
	findServiceByUUIDQuery  = "SELECT id, uuid, clinic_id, name, price, duration_minutes, active FROM tb_service WHERE uuid = $1"
	listServicesQuery       = "SELECT id, uuid, clinic_id, name, price, duration_minutes, active FROM tb_service WHERE clinic_id = $1 AND active = TRUE ORDER BY name"

	listWorkingHoursQuery       = "SELECT id, uuid, doctor_id, day_of_week, start_time, end_time, active FROM tb_working_hour WHERE doctor_id = $1 ORDER BY day_of_week, start_time"
	listActiveWorkingHoursQuery = "SELECT id, uuid, doctor_id, day_of_week, start_time, end_time, active FROM tb_working_hour WHERE doctor_id = $1 AND day_of_week = $2 AND active = TRUE ORDER BY start_time"
	insertWorkingHourQuery      = "INSERT INTO tb_working_hour (uuid, doctor_id, day_of_week, start_time, end_time, active) VALUES ($1, $2, $3, $4, $5, $6)"
	deleteWorkingHourQuery      = "DELETE FROM tb_working_hour WHERE doctor_id = $1 AND uuid = $2"

	listDaysOffQuery  = "SELECT id, uuid, doctor_id, date, reason, recurring FROM tb_day_off WHERE doctor_id = $1 ORDER BY date"
	findDayOffQuery   = "SELECT id, uuid, doctor_id, date, reason, recurring FROM tb_day_off WHERE doctor_id = $1 AND date = $2"
	insertDayOffQuery = "INSERT INTO tb_day_off (uuid, doctor_id, date, reason, recurring) VALUES ($1, $2, $3, $4, $5)"
	deleteDayOffQuery = "DELETE FROM tb_day_off WHERE doctor_id = $1 AND uuid = $2"

	uniqueViolationCode = pq.ErrorCode("23505")
)

// Repository provides access to catalog and schedule data.
type Repository interface {

	// FindDoctorByUUID finds a doctor by its UUID.
	FindDoctorByUUID(ctx context.Context, uuid uuid.UUID) (*Doctor, error)

	// FindDoctorByUserID finds a doctor by its user ID.
	FindDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error)

	// FindClinicByID finds a clinic by its ID.
	FindClinicByID(ctx context.Context, ID int64) (*Clinic, error)

	// FindServiceByUUID finds a service by its UUID.
	FindServiceByUUID(ctx context.Context, uuid uuid.UUID) (*Service, error)

	// ListServices lists the active services offered by a clinic.
	ListServices(ctx context.Context, clinicID int64) ([]*Service, error)

	// ListWorkingHours lists all the doctor's working hours.
	ListWorkingHours(ctx context.Context, doctorID int64) ([]*WorkingHour, error)

	// ListActiveWorkingHours lists the doctor's active working hours for the given weekday, sorted by start time.
	ListActiveWorkingHours(ctx context.Context, doctorID int64, dayOfWeek time.Weekday) ([]*WorkingHour, error)

	// InsertWorkingHour inserts a new working hour.
	InsertWorkingHour(ctx context.Context, workingHour WorkingHour) error

	// DeleteWorkingHour deletes the doctor's working hour with the given UUID.
	DeleteWorkingHour(ctx context.Context, doctorID int64, uuid uuid.UUID) error

	// ListDaysOff lists all the doctor's days off.
	ListDaysOff(ctx context.Context, doctorID int64) ([]*DayOff, error)

	// FindDayOff finds the doctor's day off for the given date, if any.
	FindDayOff(ctx context.Context, doctorID int64, date time.Time) (*DayOff, error)

	// InsertDayOff inserts a new day off. Returns ErrDuplicatedDayOff when one already exists for the date.
	InsertDayOff(ctx context.Context, dayOff DayOff) error

	// DeleteDayOff deletes the doctor's day off with the given UUID.
	DeleteDayOff(ctx context.Context, doctorID int64, uuid uuid.UUID) error
}

type defaultRepository struct {
	dbConn database.Connection
}

// newRepository creates a new Repository.
func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) FindDoctorByUUID(ctx context.Context, uuid uuid.UUID) (*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findDoctorByUUIDQuery, uuid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctor := new(Doctor)
	for rows.Next() {
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		if doctor.ID > 0 {
			return doctor, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) FindDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findDoctorByUserIDQuery, userID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctor := new(Doctor)
	for rows.Next() {
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		if doctor.ID > 0 {
			return doctor, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) FindClinicByID(ctx context.Context, ID int64) (*Clinic, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findClinicByIDQuery, ID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	clinic := new(Clinic)
	for rows.Next() {
		if err = database.TransformRow(rows, clinic); err != nil {
			return nil, err
		}
		if clinic.ID > 0 {
			return clinic, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) FindServiceByUUID(ctx context.Context, uuid uuid.UUID) (*Service, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findServiceByUUIDQuery, uuid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	service := new(Service)
	for rows.Next() {
		if err = database.TransformRow(rows, service); err != nil {
			return nil, err
		}
		if service.ID > 0 {
			return service, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) ListServices(ctx context.Context, clinicID int64) ([]*Service, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listServicesQuery, clinicID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	services := make([]*Service, 0)
	for rows.Next() {
		service := new(Service)
		if err = database.TransformRow(rows, service); err != nil {
			return nil, err
		}
		services = append(services, service)
	}
	return services, nil
}

func (d defaultRepository) ListWorkingHours(ctx context.Context, doctorID int64) ([]*WorkingHour, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listWorkingHoursQuery, doctorID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	workingHours := make([]*WorkingHour, 0)
	for rows.Next() {
		workingHour := new(WorkingHour)
		if err = database.TransformRow(rows, workingHour); err != nil {
			return nil, err
		}
		workingHours = append(workingHours, workingHour)
	}
	return workingHours, nil
}

func (d defaultRepository) ListActiveWorkingHours(ctx context.Context, doctorID int64, dayOfWeek time.Weekday) ([]*WorkingHour, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listActiveWorkingHoursQuery, doctorID, int32(dayOfWeek))
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	workingHours := make([]*WorkingHour, 0)
	for rows.Next() {
		workingHour := new(WorkingHour)
		if err = database.TransformRow(rows, workingHour); err != nil {
			return nil, err
		}
		workingHours = append(workingHours, workingHour)
	}
	return workingHours, nil
}

func (d defaultRepository) InsertWorkingHour(ctx context.Context, workingHour WorkingHour) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 6)
	params[0] = workingHour.UUID
	params[1] = workingHour.DoctorID
	params[2] = workingHour.DayOfWeek
	params[3] = workingHour.StartTime
	params[4] = workingHour.EndTime
	params[5] = workingHour.Active
	result, err := d.dbConn.DB().ExecContext(ctx, insertWorkingHourQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("working hour not inserted")
	}
	return nil
}

func (d defaultRepository) DeleteWorkingHour(ctx context.Context, doctorID int64, uuid uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := d.dbConn.DB().ExecContext(ctx, deleteWorkingHourQuery, doctorID, uuid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrWorkingHourNotFound)
	}
	return nil
}

func (d defaultRepository) ListDaysOff(ctx context.Context, doctorID int64) ([]*DayOff, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listDaysOffQuery, doctorID)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	daysOff := make([]*DayOff, 0)
	for rows.Next() {
		dayOff := new(DayOff)
		if err = database.TransformRow(rows, dayOff); err != nil {
			return nil, err
		}
		daysOff = append(daysOff, dayOff)
	}
	return daysOff, nil
}

func (d defaultRepository) FindDayOff(ctx context.Context, doctorID int64, date time.Time) (*DayOff, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findDayOffQuery, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	dayOff := new(DayOff)
	for rows.Next() {
		if err = database.TransformRow(rows, dayOff); err != nil {
			return nil, err
		}
		if dayOff.ID > 0 {
			return dayOff, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) InsertDayOff(ctx context.Context, dayOff DayOff) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 5)
	params[0] = dayOff.UUID
	params[1] = dayOff.DoctorID
	params[2] = dayOff.Date
	params[3] = dayOff.Reason
	params[4] = dayOff.Recurring
	result, err := d.dbConn.DB().ExecContext(ctx, insertDayOffQuery, params...)
	if err != nil {
		if pqErr, isPqErr := err.(*pq.Error); isPqErr && pqErr.Code == uniqueViolationCode {
			return Error(ErrDuplicatedDayOff)
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("day off not inserted")
	}
	return nil
}

func (d defaultRepository) DeleteDayOff(ctx context.Context, doctorID int64, uuid uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	result, err := d.dbConn.DB().ExecContext(ctx, deleteDayOffQuery, doctorID, uuid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return Error(ErrDayOffNotFound)
	}
	return nil
}
