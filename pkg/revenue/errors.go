package revenue

import "github.com/meridian-hq/meridian/pkg/errx"

var revenueErrors = errx.NewRegistry("REVENUE")

// NewError builds a fresh error from one of the registered revenue codes.
// Store implementations in other packages use it to return domain errors.
func NewError(code *errx.ErrorCode) *errx.Error {
	return revenueErrors.New(code)
}

// NewErrorWithCause is NewError with an underlying cause attached.
func NewErrorWithCause(code *errx.ErrorCode, cause error) *errx.Error {
	return revenueErrors.NewWithCause(code, cause)
}

var (
	ErrTenantNotFound  = revenueErrors.Register("TENANT_NOT_FOUND", errx.TypeNotFound, 404, "Tenant not found")
	ErrStateNotFound   = revenueErrors.Register("STATE_NOT_FOUND", errx.TypeNotFound, 404, "Tenant revenue state not found")
	ErrNegativeAmount  = revenueErrors.Register("NEGATIVE_AMOUNT", errx.TypeValidation, 400, "Amount must not be negative")
	ErrUnknownSource   = revenueErrors.Register("UNKNOWN_SOURCE", errx.TypeValidation, 400, "Unknown commission source")
	ErrPeriodProcessed = revenueErrors.Register("PERIOD_PROCESSED", errx.TypeConflict, 409, "Period already processed for tenant")
	ErrLedgerFailure   = revenueErrors.Register("LEDGER_FAILURE", errx.TypeExternal, 502, "Ledger store operation failed")
)
