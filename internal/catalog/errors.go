package catalog

type Error string

const (
	ErrDoctorNotFound      = "doctor not found"
	ErrServiceNotFound     = "service not found"
	ErrWorkingHourNotFound = "working hour not found"
	ErrDayOffNotFound      = "day off not found"
	ErrInvalidIdentifier   = "invalid identifier"
	ErrDuplicatedDayOff    = "a day off already exists for this date"
	ErrOnlyDoctorsAllowed  = "only a doctor can manage its schedule"
)

func (e Error) Error() string {
	return string(e)
}
