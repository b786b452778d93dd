package scheduling

import (
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/catalog"
)

// Snapshot holds the schedule data a booking attempt is validated against.
// Loading it is the caller's concern; validation itself is pure and read-only.
// The storage layer re-checks the booked-slot condition atomically at insert
// time, so a race lost after a passing Validate still surfaces as a conflict.
type Snapshot struct {
	Today        time.Time
	HorizonDays  int
	WorkingHours []*catalog.WorkingHour
	DayOff       *catalog.DayOff
	BookedStarts []catalog.TimeOfDay
}

// Validate decides whether (date, startTime) is an acceptable booking against
// the snapshot. Checks run in a fixed order and the first failure wins.
func Validate(snapshot Snapshot, date time.Time, startTime catalog.TimeOfDay) error {
	if date.Before(snapshot.Today) {
		return apierrors.NewValidationError("date", ErrPastDate)
	}
	if date.After(snapshot.Today.AddDate(0, 0, snapshot.HorizonDays)) {
		return apierrors.NewValidationError("date", ErrTooFarInAdvance)
	}
	hasActive := false
	for _, workingHour := range snapshot.WorkingHours {
		if workingHour.Active {
			hasActive = true
			break
		}
	}
	if !hasActive {
		return apierrors.NewValidationError("date", ErrDoctorUnavailableWeekday)
	}
	withinRange := false
	for _, workingHour := range snapshot.WorkingHours {
		if !workingHour.Active {
			continue
		}
		if !startTime.Before(workingHour.StartTime) && startTime.Before(workingHour.EndTime) {
			withinRange = true
			break
		}
	}
	if !withinRange {
		return apierrors.NewValidationError("start_time", ErrOutsideWorkingHours)
	}
	if snapshot.DayOff != nil {
		return apierrors.NewValidationError("date", ErrDoctorDayOff)
	}
	for _, booked := range snapshot.BookedStarts {
		if booked.Minutes() == startTime.Minutes() {
			return apierrors.NewConflictError(ErrSlotAlreadyBooked)
		}
	}
	return nil
}
