package exam

import "errors"

// Domain errors. Services map these onto transport error codes; the engine
// itself never retries or swallows them.
var (
	ErrInvalidDistribution      = errors.New("composition weights must sum to 100 and total must be positive")
	ErrMaxAttemptsExceeded      = errors.New("maximum number of attempts reached")
	ErrAttemptAlreadyInProgress = errors.New("an attempt is already in progress")
	ErrAttemptNotFound          = errors.New("attempt not found")
	ErrAttemptNotActive         = errors.New("attempt is not in progress")
	ErrInvalidOption            = errors.New("selected option index out of range")
	ErrUnknownQuestion          = errors.New("question is not part of this attempt")
	ErrDuplicateAttempt         = errors.New("attempt number already exists for this candidate")
)
