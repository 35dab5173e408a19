package escore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// mapTransportError maps a failure returned by http.Client.Do (before any
// response was received) into the core taxonomy: DNS/TLS/connection
// failures and context deadline are Transient; context cancellation is
// Interrupted.
func mapTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return newInterrupted(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newTransient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newTransient(op, err)
	}
	return newTransient(op, err)
}

// mapHTTPStatus maps a received HTTP status code per spec §4.2's table.
// subject is used only to enrich a ConcurrencyViolationError.
func mapHTTPStatus(op, subject string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout:
		return newTransient(op, fmt.Errorf("request timeout: %s", body))
	case status == http.StatusConflict:
		return newConcurrencyViolation(op, subject, fmt.Errorf("precondition failed: %s", body))
	case status >= 500 && status < 600:
		return newTransient(op, fmt.Errorf("server error %d: %s", status, body))
	case status >= 400 && status < 500:
		return newNonTransient(op, fmt.Errorf("client error %d: %s", status, body))
	default:
		return newNonTransient(op, fmt.Errorf("unexpected status %d: %s", status, body))
	}
}
