package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Assessment
	ErrInvalidDistribution ErrCode = "INVALID_DISTRIBUTION"
	ErrMaxAttempts         ErrCode = "MAX_ATTEMPTS_EXCEEDED"
	ErrAttemptInProgress   ErrCode = "ATTEMPT_ALREADY_IN_PROGRESS"
	ErrAttemptNotFound     ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotActive    ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrInvalidOption       ErrCode = "INVALID_OPTION"
	ErrDuplicateAttempt    ErrCode = "DUPLICATE_ATTEMPT"
	ErrUnknownQuestion     ErrCode = "QUESTION_NOT_IN_ATTEMPT"

	// Rate Limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	case ErrInvalidDistribution:
		return "Difficulty weights must sum to 100 and the question count must be positive."
	case ErrMaxAttempts:
		return "You have used all of your allowed attempts."
	case ErrAttemptInProgress:
		return "You already have an assessment in progress."
	case ErrAttemptNotFound:
		return "The attempt was not found."
	case ErrAttemptNotActive:
		return "The attempt is no longer in progress."
	case ErrInvalidOption:
		return "The selected option is out of range for this question."
	case ErrDuplicateAttempt:
		return "An attempt with this number already exists."
	case ErrUnknownQuestion:
		return "The question is not part of this attempt."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
