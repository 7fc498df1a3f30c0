package model

import (
	"errors"
	"fmt"
)

// FetchErrorKind is the stable tag of a provider-scoped failure.
type FetchErrorKind string

// Fetch error kinds. The credential kinds mirror credential.Kind when a
// resolution failure is carried in an outcome.
const (
	KindTimeout                FetchErrorKind = "timeout"
	KindTransportFailure       FetchErrorKind = "transport_failure"
	KindAuthenticationRejected FetchErrorKind = "authentication_rejected"
	KindRemoteUnavailable      FetchErrorKind = "remote_unavailable"
	KindUnsupportedOperation   FetchErrorKind = "unsupported_operation"
	KindUnrecognizedResponse   FetchErrorKind = "unrecognized_response_shape"
	KindMissingCredential      FetchErrorKind = "missing_credential"
	KindUnsupportedSource      FetchErrorKind = "unsupported_source"
	KindInvalidAccountIndex    FetchErrorKind = "invalid_account_index"
	KindInvalidRange           FetchErrorKind = "invalid_range"
	KindInvalidTimezone        FetchErrorKind = "invalid_timezone"
	KindInternal               FetchErrorKind = "internal"
)

func (k FetchErrorKind) String() string { return string(k) }

// ExitCode maps the kind to the process exit status it contributes.
func (k FetchErrorKind) ExitCode() int {
	switch k {
	case KindMissingCredential, KindUnsupportedSource, KindInvalidAccountIndex:
		return 3
	case KindTimeout:
		return 4
	case KindUnsupportedOperation:
		return 2
	default:
		return 1
	}
}

// Severity orders exit codes for combining several failures: 3 > 4 > 2 > 1.
func Severity(code int) int {
	switch code {
	case 3:
		return 4
	case 4:
		return 3
	case 2:
		return 2
	case 1:
		return 1
	}
	return 0
}

// FetchError is a provider-scoped failure. It never aborts other providers.
type FetchError struct {
	Kind     FetchErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches another *FetchError by kind, so the sentinels below work with
// errors.Is.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Provider == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrTimeout                = &FetchError{Kind: KindTimeout}
	ErrTransportFailure       = &FetchError{Kind: KindTransportFailure}
	ErrAuthenticationRejected = &FetchError{Kind: KindAuthenticationRejected}
	ErrRemoteUnavailable      = &FetchError{Kind: KindRemoteUnavailable}
	ErrUnsupportedOperation   = &FetchError{Kind: KindUnsupportedOperation}
)

// NewFetchError builds a FetchError with a formatted message.
func NewFetchError(kind FetchErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFetchError converts any error into a FetchError, keeping an existing one
// and classifying the rest as KindInternal.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	var ne *NormalizationError
	if errors.As(err, &ne) {
		return &FetchError{Kind: KindUnrecognizedResponse, Message: ne.Error(), Err: err}
	}
	return &FetchError{Kind: KindInternal, Message: err.Error(), Err: err}
}

// NormalizationKind tags a failure to map a raw payload.
type NormalizationKind string

// Normalization error kinds. UnknownModelRate is recoverable and only ever
// surfaces as a report warning.
const (
	UnrecognizedResponseShape NormalizationKind = "unrecognized_response_shape"
	UnknownModelRate          NormalizationKind = "unknown_model_rate"
)

// NormalizationError reports a payload that could not be mapped.
type NormalizationError struct {
	Kind   NormalizationKind
	Detail string
}

func (e *NormalizationError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *NormalizationError) Is(target error) bool {
	t, ok := target.(*NormalizationError)
	return ok && t.Kind == e.Kind && t.Detail == ""
}

// Normalization sentinels.
var (
	ErrUnrecognizedResponseShape = &NormalizationError{Kind: UnrecognizedResponseShape}
	ErrUnknownModelRate          = &NormalizationError{Kind: UnknownModelRate}
)
