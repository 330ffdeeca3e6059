package protocol

const (
	// Action layer.
	ErrNotFound     = "E_NOT_FOUND"
	ErrOutOfRange   = "E_OUT_OF_RANGE"
	ErrPrecondition = "E_PRECONDITION"
	ErrBadRequest   = "E_BAD_REQUEST"

	// Decision dispatch.
	ErrOracle = "E_ORACLE"

	// Registry.
	ErrConflict = "E_CONFLICT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrNotFound:     {},
	ErrOutOfRange:   {},
	ErrPrecondition: {},
	ErrBadRequest:   {},
	ErrOracle:       {},
	ErrConflict:     {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
