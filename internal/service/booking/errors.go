package booking

// Code identifies one terminal reservation outcome. The set is closed:
// every failure the engine surfaces carries exactly one of these.
type Code string

const (
	CodeSlotNotFound      Code = "SLOT_NOT_FOUND"
	CodeSlotFull          Code = "SLOT_FULL"
	CodeDuplicateBooking  Code = "DUPLICATE_BOOKING"
	CodeConflictExhausted Code = "CONFLICT_EXHAUSTED"
	CodeUnexpected        Code = "UNEXPECTED"
)

// Failure is the typed result the engine returns instead of a booking.
// RetryCount is the number of retries consumed before the outcome was
// reached (0 when the first attempt was terminal).
type Failure struct {
	Code       Code
	Message    string
	RetryCount int
}

func (f *Failure) Error() string {
	return f.Message
}

func failure(code Code, msg string, retries int) *Failure {
	return &Failure{Code: code, Message: msg, RetryCount: retries}
}
