package bankfeed

import (
	"errors"
	"fmt"
)

// Provider error codes this engine reacts to. Anything else is passed
// through to the status mapper unchanged.
const (
	ErrCodeMutationDuringPagination = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"
	ErrCodeItemLoginRequired        = "ITEM_LOGIN_REQUIRED"
	ErrCodePendingExpiration        = "PENDING_EXPIRATION"
	ErrCodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInstitutionDown          = "INSTITUTION_DOWN"
)

// APIError is a structured error response from the provider.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorType  string `json:"error_type"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"error_message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s - %s", e.StatusCode, e.ErrorCode, e.Message)
}

// ErrorCodeOf extracts the provider error code from err, or "" if err is
// not a provider error.
func ErrorCodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode
	}
	return ""
}

// IsMutationDuringPagination reports whether err is the recoverable
// "underlying data changed mid-pagination" error. Callers restart the
// page loop from the last persisted cursor instead of failing.
func IsMutationDuringPagination(err error) bool {
	return ErrorCodeOf(err) == ErrCodeMutationDuringPagination
}

// IsLoginRequired reports whether the provider rejected the access token
// and the user must relink the institution.
func IsLoginRequired(err error) bool {
	return ErrorCodeOf(err) == ErrCodeItemLoginRequired
}
