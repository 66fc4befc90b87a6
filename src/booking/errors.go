package booking

import "errors"

// Capacity and availability outcomes are part of normal control flow;
// callers branch on these values rather than treating them as
// failures. Only storage problems surface as wrapped infrastructure
// errors.
var (
	ErrCapacityExceeded         = errors.New("capacity exceeded")
	ErrAlreadyResolved          = errors.New("order already resolved")
	ErrEventUnavailable         = errors.New("event unavailable")
	ErrHoldExpired              = errors.New("hold expired")
	ErrDuplicateParticipant     = errors.New("participant already registered")
	ErrPaymentReferenceConflict = errors.New("payment reference conflict")
	ErrOrderNotFound            = errors.New("order not found")
	ErrEventNotFound            = errors.New("event not found")
)

// Rejected reports whether err is an expected checkout rejection, as
// opposed to an infrastructure failure the caller should retry.
func Rejected(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrEventUnavailable) ||
		errors.Is(err, ErrDuplicateParticipant)
}
