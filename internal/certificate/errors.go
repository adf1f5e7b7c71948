package certificate

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind int

const (
	InvalidName Kind = iota + 1
	InvalidCoordinate
	InvalidUpload
	InvalidFont
	InvalidScale
	InvalidWeight
	DecodeFailure
	RenderFailure
	EncodeFailure
	PersistFailure
)

var kindNames = map[Kind]string{
	InvalidName:       "InvalidName",
	InvalidCoordinate: "InvalidCoordinate",
	InvalidUpload:     "InvalidUpload",
	InvalidFont:       "InvalidFont",
	InvalidScale:      "InvalidScale",
	InvalidWeight:     "InvalidWeight",
	DecodeFailure:     "DecodeFailure",
	RenderFailure:     "RenderFailure",
	EncodeFailure:     "EncodeFailure",
	PersistFailure:    "PersistFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsValidation reports whether k is a rejection of user input rather than a
// processing failure.
func (k Kind) IsValidation() bool {
	return k >= InvalidName && k <= InvalidWeight
}

// Error is returned by every stage of the pipeline.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below by Kind, so callers can write
// errors.Is(err, ErrInvalidName).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidName       = &Error{Kind: InvalidName}
	ErrInvalidCoordinate = &Error{Kind: InvalidCoordinate}
	ErrInvalidUpload     = &Error{Kind: InvalidUpload}
	ErrInvalidFont       = &Error{Kind: InvalidFont}
	ErrInvalidScale      = &Error{Kind: InvalidScale}
	ErrInvalidWeight     = &Error{Kind: InvalidWeight}
	ErrDecodeFailure     = &Error{Kind: DecodeFailure}
	ErrRenderFailure     = &Error{Kind: RenderFailure}
	ErrEncodeFailure     = &Error{Kind: EncodeFailure}
	ErrPersistFailure    = &Error{Kind: PersistFailure}

	// ErrUploadTooLarge is wrapped by InvalidUpload when the template exceeds
	// Limits.MaxUploadBytes.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
