package jobx

import "github.com/meridian-hq/meridian/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

// NewError builds a fresh error from one of the registered job queue codes.
// Store implementations in other packages use it to return domain errors.
func NewError(code *errx.ErrorCode) *errx.Error {
	return jobxErrors.New(code)
}

var (
	ErrJobNotFound    = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrInvalidJob     = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, 400, "Invalid job definition")
	ErrInvalidPayload = jobxErrors.Register("INVALID_PAYLOAD", errx.TypeValidation, 400, "Job payload could not be decoded")
	ErrNoProcessor    = jobxErrors.Register("NO_PROCESSOR", errx.TypeValidation, 400, "No processor registered for job type")
	ErrStoreFailure   = jobxErrors.Register("STORE_FAILURE", errx.TypeExternal, 502, "Job store operation failed")
	ErrJobTimeout     = jobxErrors.Register("JOB_TIMEOUT", errx.TypeExternal, 504, "Job processing timed out")
)
