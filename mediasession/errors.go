package mediasession

import "errors"

// Kind distinguishes the families of error a session can fail with, so
// callers can branch on failure category without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadScheme
	KindResolveFailed
	KindMissingField
	KindHTTPHandleUnavailable
	KindRangeBoundary
	KindTransferFailure
	KindTornDown
)

func (k Kind) String() string {
	switch k {
	case KindBadScheme:
		return "bad_scheme"
	case KindResolveFailed:
		return "resolve_failed"
	case KindMissingField:
		return "missing_field"
	case KindHTTPHandleUnavailable:
		return "http_handle_unavailable"
	case KindRangeBoundary:
		return "range_boundary"
	case KindTransferFailure:
		return "transfer_failure"
	case KindTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a message. The package's sentinel Err* values
// are all *Error, so errors.Is still matches them through any %w chain
// while KindOf lets a caller branch on category without a type switch
// per sentinel.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newErr(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	// ErrBadScheme is returned when a source URL lacks an http(s) prefix.
	ErrBadScheme = newErr(KindBadScheme, "mediasession: url must start with http:// or https://")
	// ErrResolveFailed is returned when the resolver rejects the URL.
	ErrResolveFailed = newErr(KindResolveFailed, "mediasession: resolve failed")
	// ErrMissingField is returned when resolution succeeds but omits a
	// required field (stream URL, HTTP handle, or positive content length).
	ErrMissingField = newErr(KindMissingField, "mediasession: resolved media missing a required field")
	// ErrHTTPHandleUnavailable names the failure to set up a session's own
	// HTTP client. MediaResource.Open copies the resolved client by value,
	// which cannot fail, so Open does not return it.
	ErrHTTPHandleUnavailable = newErr(KindHTTPHandleUnavailable, "mediasession: http handle unavailable")
	// ErrRangeBoundary is returned by Read for an out-of-bounds request.
	ErrRangeBoundary = newErr(KindRangeBoundary, "mediasession: read out of range")
	// ErrTransferFailure is delivered to promises whose range could not be
	// fetched after exhausting the retry budget.
	ErrTransferFailure = newErr(KindTransferFailure, "mediasession: transfer failed")
	// ErrTornDown is delivered to promises still pending when Close runs.
	ErrTornDown = newErr(KindTornDown, "mediasession: session torn down")
)

// KindOf returns the Kind carried by err, unwrapping as needed, or
// KindUnknown if err doesn't wrap one of this package's sentinel errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}
