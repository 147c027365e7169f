package fuzzysearch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RemoteRejectedError is returned when the index answers with a non-success status.
type RemoteRejectedError struct {
	Status   int
	Body     string
	Duration time.Duration
}

func (e *RemoteRejectedError) Error() string {
	msg := fmt.Sprintf("bad request: %d %s", e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// TransportError is returned when the request could not be sent or the
// response could not be read or decoded.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "lookup failed: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsRemoteRejected returns the status code if err is a RemoteRejectedError.
func IsRemoteRejected(err error) (int, bool) {
	var re *RemoteRejectedError
	if errors.As(err, &re) {
		return re.Status, true
	}
	return 0, false
}

// IsTransport returns true if err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
