package probe

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrCommunication is matched by every *CommunicationError.
var ErrCommunication = errors.New("communication error")

// CommunicationError reports a probe that never saw its expected substring
// within the attempt budget.
type CommunicationError struct {
	Command  string
	Expect   string
	Attempts int
	Last     error // why the final attempt failed
}

func (e *CommunicationError) Error() string {
	msg := fmt.Sprintf("communication error: no %q in reply to %q after %d attempts", e.Expect, e.Command, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

// Unwrap lets errors.Is match ErrCommunication and the last transient cause.
func (e *CommunicationError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrCommunication}
	}
	return []error{ErrCommunication, e.Last}
}

// errNoMatch ends an attempt that hit the receive ceiling without a match.
var errNoMatch = errors.New("receive ceiling reached without a match")

// isTransient reports whether err should only cost one attempt.
// Timeouts and ICMP unreachable errors surfaced on the socket are transient;
// a closed socket, a cancelled context or anything unexpected is not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
