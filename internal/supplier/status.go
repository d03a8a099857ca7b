package supplier

import "fmt"

// Status is the closed set of remote query outcomes. Only the types in this
// file implement it.
type Status interface {
	fmt.Stringer
	isStatus()
}

// StatusOK means the query was answered.
type StatusOK struct{}

// StatusInvalidCharacters means the keyword contains characters the remote
// catalog rejects. It is a property of the item, not of the remote service.
type StatusInvalidCharacters struct{}

// StatusInvalidAuthorization means the API key was rejected or missing.
type StatusInvalidAuthorization struct{}

// StatusTooManyRequests means the remote rate limit was hit.
type StatusTooManyRequests struct{}

// StatusTransport means the remote service could not be reached or returned
// an unreadable response.
type StatusTransport struct {
	Err error
}

// StatusUnknown is a remote error code without a dedicated mapping.
type StatusUnknown struct {
	Code string
}

func (StatusOK) isStatus()                   {}
func (StatusInvalidCharacters) isStatus()    {}
func (StatusInvalidAuthorization) isStatus() {}
func (StatusTooManyRequests) isStatus()      {}
func (StatusTransport) isStatus()            {}
func (StatusUnknown) isStatus()              {}

func (StatusOK) String() string                   { return "ok" }
func (StatusInvalidCharacters) String() string    { return "invalid_characters" }
func (StatusInvalidAuthorization) String() string { return "invalid_authorization" }
func (StatusTooManyRequests) String() string      { return "too_many_requests" }

func (s StatusTransport) String() string {
	if s.Err == nil {
		return "transport"
	}
	return "transport: " + s.Err.Error()
}

func (s StatusUnknown) String() string {
	return "unknown_error: " + s.Code
}

// Label returns a low cardinality name for a status, suitable for metric
// attributes.
func Label(s Status) string {
	switch s.(type) {
	case StatusOK:
		return "ok"
	case StatusInvalidCharacters:
		return "invalid_characters"
	case StatusInvalidAuthorization:
		return "invalid_authorization"
	case StatusTooManyRequests:
		return "too_many_requests"
	case StatusTransport:
		return "transport"
	case StatusUnknown:
		return "unknown_error"
	default:
		return "unknown_error"
	}
}
