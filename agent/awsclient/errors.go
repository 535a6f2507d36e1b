package awsclient

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

var (
	ErrThrottled    = errors.New("aws request throttled")
	ErrUnauthorized = errors.New("aws access denied")
	ErrNotFound     = errors.New("aws resource not found")
	ErrTransient    = errors.New("aws transient failure")
	ErrUnknown      = errors.New("aws request failed")
	ErrInvalidInput = errors.New("aws rejected request parameters")
)

var kindSentinels = map[contractx.ErrorKind]error{
	contractx.KindThrottled:    ErrThrottled,
	contractx.KindUnauthorized: ErrUnauthorized,
	contractx.KindNotFound:     ErrNotFound,
	contractx.KindTransient:    ErrTransient,
	contractx.KindUnknown:      ErrUnknown,
	contractx.KindInvalidInput: ErrInvalidInput,
}

// Error is the terminal failure of a resilient call.
type Error struct {
	Service   string
	Operation string
	Kind      contractx.ErrorKind
	Code      string
	Attempts  int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s failed (%s) after %d attempt(s): %v", e.Service, e.Operation, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// Message returns the provider's own message when there is one.
func (e *Error) Message() string {
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf reports the error kind carried by err, classifying it when it did not
// come through a Client.
func KindOf(err error) contractx.ErrorKind {
	if err == nil {
		return ""
	}
	var awsErr *Error
	if errors.As(err, &awsErr) {
		return awsErr.Kind
	}
	return Classify(err)
}
