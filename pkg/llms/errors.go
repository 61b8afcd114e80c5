package llms

import (
	"fmt"
	"strings"
)

// ErrorClass categorizes backend failures for the retry driver.
type ErrorClass string

const (
	// FatalAuth means a missing or invalid API key. Aborts the process.
	FatalAuth ErrorClass = "FATAL_AUTH"
	// FatalQuota means the account quota is exhausted. Aborts the process.
	FatalQuota ErrorClass = "FATAL_QUOTA"
	// FatalConnection means the backend is unreachable. Retried by the
	// conversation manager, then reported fatally.
	FatalConnection ErrorClass = "FATAL_CONNECTION"
	// NonFatal is everything else. Written into the history as a system
	// message and the conversation continues.
	NonFatal ErrorClass = "NON_FATAL"
)

// ClientError is a classified backend failure.
type ClientError struct {
	Class ErrorClass
	Model string
	Err   error
}

func (e *ClientError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Class, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError wraps err with its classification for model.
func NewClientError(model string, err error) *ClientError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ClientError); ok {
		return ce
	}
	return &ClientError{Class: Classify(err), Model: model, Err: err}
}

var connectionSignals = []string{
	"connection aborted",
	"remote end closed",
	"connection refused",
	"max retries exceeded",
	"read timed out",
	"service unavailable",
	"context deadline exceeded",
	"no such host",
	"connection reset",
}

// Classify categorizes an error by case-insensitive substring match on
// its message.
func Classify(err error) ErrorClass {
	if err == nil {
		return NonFatal
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "api key") &&
		(strings.Contains(msg, "missing") || strings.Contains(msg, "not provided") || strings.Contains(msg, "no api key")) {
		return FatalAuth
	}
	if strings.Contains(msg, "authentication failed") || strings.Contains(msg, "api key not valid") {
		return FatalAuth
	}
	if strings.Contains(msg, "quota exceeded") {
		return FatalQuota
	}
	for _, signal := range connectionSignals {
		if strings.Contains(msg, signal) {
			return FatalConnection
		}
	}
	return NonFatal
}
