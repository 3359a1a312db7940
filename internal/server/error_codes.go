package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeMissingRequired   = 1009
	ErrCodeInvalidTimeFilter = 1010
	ErrCodeInvalidVisibility = 1011
	ErrCodeInvalidRating     = 1012
	ErrCodeInvalidImageRef   = 1013
	ErrCodeInvalidRole       = 1014
	ErrCodeInvalidEmail      = 1015

	// Image ingestion (11xx)
	ErrCodeUnsupportedImageType = 1101
	ErrCodeImageTooLarge        = 1102
	ErrCodeInvalidImage         = 1103

	// Domain state (2xxx)
	ErrCodeMealNotFound  = 2001
	ErrCodeUserNotFound  = 2002
	ErrCodeImageNotFound = 2003
	ErrCodeUsernameTaken = 2101
	ErrCodeConflict      = 2102
	ErrCodeImageInUse    = 2103
	ErrCodeEmailTaken    = 2104

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeStorageFailure = 4003
)
