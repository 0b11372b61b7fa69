package domain

import "errors"

// Failure classes shared by HTTP handlers and socket events. Operations wrap
// one of these with context; callers classify with errors.Is.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("permission denied")
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage failure")
)

// PublicMessage returns the text safe to show a caller. Storage and unclassified
// failures are reported generically; their detail goes to the log only.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		return "internal server error"
	}
}
