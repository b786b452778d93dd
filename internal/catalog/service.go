package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/auth"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"

	"github.com/google/uuid"
)

// Reader determines the read-only lookups the booking engine consumes.
type Reader interface {

	// FindDoctor finds a doctor by its UUID, with its clinic loaded.
	FindDoctor(ctx context.Context, doctorUUID uuid.UUID) (*Doctor, error)

	// FindDoctorByUserID finds the doctor associated to the given user, if any.
	FindDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error)

	// FindService finds a service by its UUID.
	FindService(ctx context.Context, serviceUUID uuid.UUID) (*Service, error)

	// ActiveWorkingHours lists the doctor's active working hours for the given weekday, sorted by start time.
	ActiveWorkingHours(ctx context.Context, doctorID int64, dayOfWeek time.Weekday) ([]*WorkingHour, error)

	// DayOffOn gets the doctor's day off for the given date, if any.
	DayOffOn(ctx context.Context, doctorID int64, date time.Time) (*DayOff, error)

	// ListDoctorServices lists the active services offered at the doctor's clinic.
	ListDoctorServices(ctx context.Context, doctorUUID uuid.UUID) ([]*Service, error)
}

// ScheduleManager determines the doctor-facing schedule management operations.
type ScheduleManager interface {

	// ListWorkingHours lists the working hours of the doctor associated to the given user.
	ListWorkingHours(ctx context.Context, user auth.User) ([]*WorkingHour, error)

	// AddWorkingHour adds a working hour to the schedule of the doctor associated to the given user.
	AddWorkingHour(ctx context.Context, user auth.User, workingHour WorkingHour) (*WorkingHour, error)

	// RemoveWorkingHour removes a working hour from the schedule of the doctor associated to the given user.
	RemoveWorkingHour(ctx context.Context, user auth.User, workingHourUUID uuid.UUID) error

	// ListDaysOff lists the days off of the doctor associated to the given user.
	ListDaysOff(ctx context.Context, user auth.User) ([]*DayOff, error)

	// AddDayOff adds a day off to the schedule of the doctor associated to the given user.
	AddDayOff(ctx context.Context, user auth.User, dayOff DayOff) (*DayOff, error)

	// RemoveDayOff removes a day off from the schedule of the doctor associated to the given user.
	RemoveDayOff(ctx context.Context, user auth.User, dayOffUUID uuid.UUID) error
}

// Catalog groups the read side consumed by the booking engine with the
// doctor-facing schedule management.
type Catalog interface {
	Reader
	ScheduleManager
}

type defaultService struct {
	config     configs.Config
	repository Repository
}

// NewCatalog creates a new catalog service.
func NewCatalog(config configs.Config, dbConn database.Connection) Catalog {
	return &defaultService{
		config:     config,
		repository: newRepository(dbConn),
	}
}

func (d defaultService) FindDoctor(ctx context.Context, doctorUUID uuid.UUID) (*Doctor, error) {
	doctor, err := d.repository.FindDoctorByUUID(ctx, doctorUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if doctor == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrDoctorNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	if doctor.ClinicID > 0 {
		clinic, err := d.repository.FindClinicByID(ctx, doctor.ClinicID)
		if err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
		doctor.Clinic = clinic
	}
	return doctor, nil
}

func (d defaultService) FindDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error) {
	return d.repository.FindDoctorByUserID(ctx, userID)
}

func (d defaultService) FindService(ctx context.Context, serviceUUID uuid.UUID) (*Service, error) {
	service, err := d.repository.FindServiceByUUID(ctx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if service == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrServiceNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	return service, nil
}

func (d defaultService) ListDoctorServices(ctx context.Context, doctorUUID uuid.UUID) ([]*Service, error) {
	doctor, err := d.FindDoctor(ctx, doctorUUID)
	if err != nil {
		return nil, err
	}
	services, err := d.repository.ListServices(ctx, doctor.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return services, nil
}

func (d defaultService) ActiveWorkingHours(ctx context.Context, doctorID int64, dayOfWeek time.Weekday) ([]*WorkingHour, error) {
	return d.repository.ListActiveWorkingHours(ctx, doctorID, dayOfWeek)
}

func (d defaultService) DayOffOn(ctx context.Context, doctorID int64, date time.Time) (*DayOff, error) {
	return d.repository.FindDayOff(ctx, doctorID, date)
}

// doctorOf resolves the doctor record associated to the given user.
func (d defaultService) doctorOf(ctx context.Context, user auth.User) (*Doctor, error) {
	doctor, err := d.repository.FindDoctorByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if doctor == nil {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyDoctorsAllowed), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	return doctor, nil
}

func (d defaultService) ListWorkingHours(ctx context.Context, user auth.User) ([]*WorkingHour, error) {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return d.repository.ListWorkingHours(ctx, doctor.ID)
}

func (d defaultService) AddWorkingHour(ctx context.Context, user auth.User, workingHour WorkingHour) (*WorkingHour, error) {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if err = workingHour.Validate(); err != nil {
		return nil, err
	}
	workingHour.DoctorID = doctor.ID
	workingHour.UUID, err = uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if err = d.repository.InsertWorkingHour(ctx, workingHour); err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return &workingHour, nil
}

func (d defaultService) RemoveWorkingHour(ctx context.Context, user auth.User, workingHourUUID uuid.UUID) error {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return err
	}
	if err = d.repository.DeleteWorkingHour(ctx, doctor.ID, workingHourUUID); err != nil {
		if err == Error(ErrWorkingHourNotFound) {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrWorkingHourNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
		}
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) ListDaysOff(ctx context.Context, user auth.User) ([]*DayOff, error) {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return d.repository.ListDaysOff(ctx, doctor.ID)
}

func (d defaultService) AddDayOff(ctx context.Context, user auth.User, dayOff DayOff) (*DayOff, error) {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if err = dayOff.Validate(); err != nil {
		return nil, err
	}
	dayOff.DoctorID = doctor.ID
	dayOff.Date = dayOff.Date.Truncate(24 * time.Hour)
	dayOff.UUID, err = uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if err = d.repository.InsertDayOff(ctx, dayOff); err != nil {
		if err == Error(ErrDuplicatedDayOff) {
			return nil, apierrors.NewConflictError(ErrDuplicatedDayOff)
		}
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return &dayOff, nil
}

func (d defaultService) RemoveDayOff(ctx context.Context, user auth.User, dayOffUUID uuid.UUID) error {
	doctor, err := d.doctorOf(ctx, user)
	if err != nil {
		return err
	}
	if err = d.repository.DeleteDayOff(ctx, doctor.ID, dayOffUUID); err != nil {
		if err == Error(ErrDayOffNotFound) {
			return apierrors.NewAPIError(apierrors.WithDetail(ErrDayOffNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
		}
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}
