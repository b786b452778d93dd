package scheduling

import "fmt"

type Error string

const (
	ErrAppointmentNotFound      = "appointment not found"
	ErrInvalidIdentifier        = "invalid identifier"
	ErrInvalidDateReference     = "invalid date reference"
	ErrOnlyPatientCanBook       = "only a patient can book an appointment"
	ErrNotAppointmentOwner      = "appointment belongs to another patient"
	ErrNotAppointmentDoctor     = "appointment belongs to another doctor"
	ErrPastDate                 = "date is in the past"
	ErrTooFarInAdvance          = "date is too far in advance"
	ErrDoctorUnavailableWeekday = "doctor unavailable this day"
	ErrOutsideWorkingHours      = "outside working hours"
	ErrDoctorDayOff             = "doctor unavailable this date"
	ErrSlotAlreadyBooked        = "slot already booked"
	ErrAppointmentAlreadyBegun  = "appointment has already begun"
)

func (e Error) Error() string {
	return string(e)
}

// TransitionError reports an attempt to move an appointment through a
// disallowed status transition. It is a usage error, not a user input error,
// so handlers map it to 422 and log it as unexpected.
type TransitionError struct {
	Action string `json:"action"`
	From   Status `json:"from"`
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(action string, from Status) *TransitionError {
	return &TransitionError{Action: action, From: from}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %s", e.Action, e.From)
}
