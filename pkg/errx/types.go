package errx

// Type categorizes an error.
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents validation errors
	TypeValidation Type = "VALIDATION"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflict errors
	TypeConflict Type = "CONFLICT"

	// TypeBusiness represents business logic errors
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents errors from external services
	TypeExternal Type = "EXTERNAL"
)

func (t Type) String() string {
	return string(t)
}

// Permanent reports whether errors of this type are non-retryable. Validation,
// business, not-found and conflict failures will not change on a retry; internal
// and external failures are assumed transient.
func (t Type) Permanent() bool {
	switch t {
	case TypeValidation, TypeBusiness, TypeNotFound, TypeConflict:
		return true
	default:
		return false
	}
}
