package billing

type Error string

const (
	ErrPaymentNotFound           = "payment not found"
	ErrCardNotFound              = "card not found"
	ErrInvalidIdentifier         = "invalid identifier"
	ErrOnlyPatientCanPay         = "only a patient can pay for an appointment"
	ErrNotAppointmentOwner       = "appointment belongs to another patient"
	ErrAppointmentAlreadySettled = "appointment already settled"
	ErrMissingCard               = "card details or a saved card are required"
	ErrPaymentFailed             = "payment failed, please retry"
)

func (e Error) Error() string {
	return string(e)
}
