package catalog

import (
	"time"

	"clinic-booking/internal/apierrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Clinic struct {
	ID      int64     `json:"-" dbfield:"id"`
	UUID    uuid.UUID `json:"uuid" dbfield:"uuid"`
	Name    string    `json:"name" dbfield:"name"`
	Address string    `json:"address" dbfield:"address"`
	Phone   string    `json:"phone" dbfield:"phone"`
}

type Doctor struct {
	ID        int64     `json:"-" dbfield:"id"`
	UserID    int64     `json:"-" dbfield:"user_id"`
	ClinicID  int64     `json:"-" dbfield:"clinic_id"`
	UUID      uuid.UUID `json:"uuid" dbfield:"uuid"`
	Name      string    `json:"name" dbfield:"name"`
	Email     string    `json:"email" dbfield:"email"`
	Specialty string    `json:"specialty" dbfield:"specialty"`
	Clinic    *Clinic   `json:"clinic,omitempty"`
}

type Service struct {
	ID              int64           `json:"-" dbfield:"id"`
	ClinicID        int64           `json:"-" dbfield:"clinic_id"`
	UUID            uuid.UUID       `json:"uuid" dbfield:"uuid"`
	Name            string          `json:"name" dbfield:"name"`
	Price           decimal.Decimal `json:"price" dbfield:"price"`
	DurationMinutes int32           `json:"duration_minutes" dbfield:"duration_minutes"`
	Active          bool            `json:"active" dbfield:"active"`
}

// WorkingHour is a recurring weekly range in which a doctor accepts bookings.
// DayOfWeek follows time.Weekday, 0 = Sunday.
type WorkingHour struct {
	ID        int64     `json:"-" dbfield:"id"`
	DoctorID  int64     `json:"-" dbfield:"doctor_id"`
	UUID      uuid.UUID `json:"uuid" dbfield:"uuid"`
	DayOfWeek int32     `json:"day_of_week" dbfield:"day_of_week"`
	StartTime TimeOfDay `json:"start_time" dbfield:"start_time"`
	EndTime   TimeOfDay `json:"end_time" dbfield:"end_time"`
	Active    bool      `json:"active" dbfield:"active"`
}

// Validate checks if the working hour is valid.
func (w WorkingHour) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return apierrors.NewValidationError("day_of_week", "must be between 0 and 6")
	}
	if !w.StartTime.Before(w.EndTime) {
		return apierrors.NewValidationError("end_time", "must be after start_time")
	}
	return nil
}

// DayOff is a one-off date exception overriding a doctor's working hours.
// Recurring marks annual recurrence; it is stored but not yet applied by the
// availability calculation, pending product clarification.
type DayOff struct {
	ID        int64     `json:"-" dbfield:"id"`
	DoctorID  int64     `json:"-" dbfield:"doctor_id"`
	UUID      uuid.UUID `json:"uuid" dbfield:"uuid"`
	Date      time.Time `json:"date" dbfield:"date"`
	Reason    *string   `json:"reason" dbfield:"reason"`
	Recurring bool      `json:"recurring" dbfield:"recurring"`
}

// Validate checks if the day off is valid.
func (d DayOff) Validate() error {
	if d.Date.IsZero() {
		return apierrors.NewValidationError("date", "required")
	}
	return nil
}
