package tool

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

var (
	// 3-63 chars, lower-case letters, digits, dots and hyphens, alphanumeric at both ends.
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	iamNamePattern    = regexp.MustCompile(`^[\w+=,.@-]{1,64}$`)
	instanceIDPattern = regexp.MustCompile(`^i-([0-9a-f]{8}|[0-9a-f]{17})$`)
)

// kindError is a tool-level failure that already knows its kind.
type kindError struct {
	kind contractx.ErrorKind
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Is(target error) bool {
	switch e.kind {
	case contractx.KindInvalidInput:
		return target == contractx.ErrInvalidInput
	case contractx.KindNotFound:
		return target == awsclient.ErrNotFound
	default:
		return false
	}
}

func invalidArg(format string, args ...any) error {
	return &kindError{kind: contractx.KindInvalidInput, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &kindError{kind: contractx.KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// stringArg returns a required, trimmed, non-empty string argument.
func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", invalidArg("%s is required", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", invalidArg("%s must be a string", name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalidArg("%s must not be empty", name)
	}
	return value, nil
}

func bucketNameArg(args map[string]any) (string, error) {
	name, err := stringArg(args, ParamBucketName)
	if err != nil {
		return "", err
	}
	if !bucketNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return "", invalidArg("%q is not a valid S3 bucket name", name)
	}
	return name, nil
}

func userNameArg(args map[string]any) (string, error) {
	name, err := stringArg(args, ParamUsername)
	if err != nil {
		return "", err
	}
	if !iamNamePattern.MatchString(name) {
		return "", invalidArg("%q is not a valid IAM user name", name)
	}
	return name, nil
}

func instanceIDArg(args map[string]any) (string, error) {
	id, err := stringArg(args, ParamInstanceID)
	if err != nil {
		return "", err
	}
	if !instanceIDPattern.MatchString(strings.ToLower(id)) {
		return "", invalidArg("%q is not a valid EC2 instance id (expected i- followed by 8 or 17 hex characters)", id)
	}
	return strings.ToLower(id), nil
}

// resultFor folds a handler outcome into a ToolResult.
func resultFor(tool string, payload any, err error) contractx.ToolResult {
	if err == nil {
		return contractx.Success(tool, payload)
	}

	var ke *kindError
	if errors.As(err, &ke) {
		return contractx.Failure(tool, ke.kind, ke.msg)
	}
	var awsErr *awsclient.Error
	if errors.As(err, &awsErr) {
		return contractx.Failure(tool, awsErr.Kind, fmt.Sprintf("%s %s: %s", awsErr.Service, awsErr.Operation, awsErr.Message()))
	}
	if errors.Is(err, contractx.ErrInvalidInput) {
		return contractx.Failure(tool, contractx.KindInvalidInput, err.Error())
	}
	return contractx.Failure(tool, awsclient.KindOf(err), err.Error())
}
