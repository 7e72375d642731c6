package api

import (
	"errors"
	"fmt"
	"pickhelper/internal/domain"
)

// FetchError is the only error type returned by Client. Kind separates
// "the service says there is no data" from transport and decoding problems.
type FetchError struct {
	Kind    domain.ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case domain.ErrorKindServiceError:
		return fmt.Sprintf("service error: %s", e.Message)
	case domain.ErrorKindBadResponse:
		if e.Err != nil {
			return fmt.Sprintf("bad response (status %d): %v", e.Status, e.Err)
		}
		return fmt.Sprintf("bad response (status %d)", e.Status)
	default:
		return fmt.Sprintf("network failure: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func networkFailure(err error) *FetchError {
	return &FetchError{Kind: domain.ErrorKindNetworkFailure, Err: err}
}

func badResponse(status int, err error) *FetchError {
	return &FetchError{Kind: domain.ErrorKindBadResponse, Status: status, Err: err}
}

func serviceError(status int, message string) *FetchError {
	return &FetchError{Kind: domain.ErrorKindServiceError, Status: status, Message: message}
}

// KindOf reports the FetchError kind of err, or network_failure for any
// other non-nil error.
func KindOf(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return domain.ErrorKindNetworkFailure
}

func IsServiceError(err error) bool {
	return KindOf(err) == domain.ErrorKindServiceError
}
