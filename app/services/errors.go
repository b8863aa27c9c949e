package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/offersync/app/clients"
)

var (
	// ErrNotAuthenticated means no vendor handshake has been stored yet.
	ErrNotAuthenticated = errors.New("services: not authenticated with the vendor")
	// ErrProductAlreadyExists is returned when a name belongs to an active
	// product, or to any other product on rename.
	ErrProductAlreadyExists = errors.New("services: product already exists")
	// ErrProductNotFound is returned for unknown or inactive products.
	ErrProductNotFound = errors.New("services: product not found")
	// ErrUpstreamUnavailable covers transport failures and any non-200 while
	// fetching offers or authenticating.
	ErrUpstreamUnavailable = errors.New("services: vendor unavailable")
	// ErrUpstreamRejected covers status errors from the registration call.
	ErrUpstreamRejected = errors.New("services: vendor rejected the request")
	// ErrInvalidInput marks caller mistakes such as an empty name.
	ErrInvalidInput = errors.New("services: invalid input")
)

// UpstreamRejectedError is a 400 or 401 from the registration endpoint.
type UpstreamRejectedError struct {
	Status int
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("services: vendor rejected the request with %d", e.Status)
}

func (e *UpstreamRejectedError) Unwrap() error { return ErrUpstreamRejected }

// UpstreamUnexpectedError is any other status the vendor was not expected
// to return. It unwraps to ErrUpstreamRejected on registration and to
// ErrUpstreamUnavailable everywhere else.
type UpstreamUnexpectedError struct {
	Endpoint string
	Status   int

	kind error
}

func (e *UpstreamUnexpectedError) Error() string {
	return fmt.Sprintf("services: vendor %s returned unexpected status %d", e.Endpoint, e.Status)
}

func (e *UpstreamUnexpectedError) Unwrap() error {
	if e.kind == nil {
		return ErrUpstreamRejected
	}
	return e.kind
}

// upstreamError translates a vendor client error. With rejectable set (the
// registration call) 400 and 401 become an UpstreamRejectedError and other
// statuses stay rejections; otherwise every status is unavailability.
func upstreamError(err error, rejectable bool) error {
	var se *clients.StatusError
	switch {
	case errors.As(err, &se):
		if rejectable && (se.Status == http.StatusBadRequest || se.Status == http.StatusUnauthorized) {
			return &UpstreamRejectedError{Status: se.Status}
		}
		kind := ErrUpstreamUnavailable
		if rejectable {
			kind = ErrUpstreamRejected
		}
		return &UpstreamUnexpectedError{Endpoint: se.Endpoint, Status: se.Status, kind: kind}
	case errors.Is(err, clients.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return err
}
