package errors

// Error codes for standardized error responses
const (
	// Authentication
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeInvalidToken    = "invalid_token"
	ErrCodeForbidden       = "forbidden"

	// Validation
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodeInvalidConfiguration = "invalid_configuration"

	// Resources
	ErrCodeNotFound = "not_found"
	ErrCodeConflict = "conflict"

	// Matchmaking / lifecycle
	ErrCodeAlreadyInMatch  = "already_in_match"
	ErrCodeMatchNotPlaying = "match_not_playing"
	ErrCodeAlreadyAnswered = "already_answered"
	ErrCodeAlreadySettled  = "already_settled"

	// Server
	ErrCodeInternalError = "internal_error"
)
