package auth

// UnauthorizedError is returned when a request cannot be tied to a valid
// clinic account, either because the credentials are wrong or because the
// token is missing, expired or malformed. It carries no detail on purpose.
type UnauthorizedError struct{}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError() *UnauthorizedError {
	return &UnauthorizedError{}
}

func (v UnauthorizedError) Error() string {
	return "not authorized"
}
