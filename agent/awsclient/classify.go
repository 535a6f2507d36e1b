package awsclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

var codeKinds = map[string]contractx.ErrorKind{
	// throttling
	"Throttling":                             contractx.KindThrottled,
	"ThrottlingException":                    contractx.KindThrottled,
	"ThrottledException":                     contractx.KindThrottled,
	"RequestThrottled":                       contractx.KindThrottled,
	"RequestThrottledException":              contractx.KindThrottled,
	"RequestLimitExceeded":                   contractx.KindThrottled,
	"TooManyRequestsException":               contractx.KindThrottled,
	"ProvisionedThroughputExceededException": contractx.KindThrottled,
	"SlowDown":                               contractx.KindThrottled,
	"PriorRequestNotComplete":                contractx.KindThrottled,
	"EC2ThrottledException":                  contractx.KindThrottled,
	"BandwidthLimitExceeded":                 contractx.KindThrottled,

	// permission and credential problems
	"AccessDenied":                contractx.KindUnauthorized,
	"AccessDeniedException":       contractx.KindUnauthorized,
	"UnauthorizedOperation":       contractx.KindUnauthorized,
	"UnauthorizedAccess":          contractx.KindUnauthorized,
	"AuthFailure":                 contractx.KindUnauthorized,
	"InvalidClientTokenId":        contractx.KindUnauthorized,
	"InvalidAccessKeyId":          contractx.KindUnauthorized,
	"SignatureDoesNotMatch":       contractx.KindUnauthorized,
	"ExpiredToken":                contractx.KindUnauthorized,
	"ExpiredTokenException":       contractx.KindUnauthorized,
	"InvalidToken":                contractx.KindUnauthorized,
	"MissingAuthenticationToken":  contractx.KindUnauthorized,
	"UnrecognizedClientException": contractx.KindUnauthorized,
	"AllAccessDisabled":           contractx.KindUnauthorized,
	"AccountProblem":              contractx.KindUnauthorized,
	"OptInRequired":               contractx.KindUnauthorized,
	"InvalidSecurity":             contractx.KindUnauthorized,
	"NotAuthorized":               contractx.KindUnauthorized,
	"InvalidIdentityToken":        contractx.KindUnauthorized,
	"IncompleteSignature":         contractx.KindUnauthorized,
	"AccessDeniedForDependency":   contractx.KindUnauthorized,

	// missing resources
	"NoSuchBucket":              contractx.KindNotFound,
	"NoSuchKey":                 contractx.KindNotFound,
	"NoSuchEntity":              contractx.KindNotFound,
	"NoSuchBucketPolicy":        contractx.KindNotFound,
	"NotFound":                  contractx.KindNotFound,
	"ResourceNotFoundException": contractx.KindNotFound,

	// request shape rejected by the provider
	"ValidationError":             contractx.KindInvalidInput,
	"ValidationException":         contractx.KindInvalidInput,
	"InvalidParameterValue":       contractx.KindInvalidInput,
	"InvalidParameter":            contractx.KindInvalidInput,
	"InvalidParameterCombination": contractx.KindInvalidInput,
	"InvalidInput":                contractx.KindInvalidInput,
	"MissingParameter":            contractx.KindInvalidInput,
	"MalformedXML":                contractx.KindInvalidInput,
	"InvalidBucketName":           contractx.KindInvalidInput,
	"InvalidArgument":             contractx.KindInvalidInput,

	// server side, worth another try
	"InternalError":               contractx.KindTransient,
	"InternalFailure":             contractx.KindTransient,
	"InternalServerError":         contractx.KindTransient,
	"ServiceUnavailable":          contractx.KindTransient,
	"ServiceUnavailableException": contractx.KindTransient,
	"Unavailable":                 contractx.KindTransient,
	"RequestTimeout":              contractx.KindTransient,
	"RequestTimeoutException":     contractx.KindTransient,
	"IDPCommunicationError":       contractx.KindTransient,
	"ServiceFailure":              contractx.KindTransient,
}

// Classify maps a raw SDK failure to an ErrorKind. It only looks at structured
// data (API error codes, HTTP status, transport error types), never at message
// text. Anything it does not recognise is KindUnknown.
func Classify(err error) contractx.ErrorKind {
	if err == nil {
		return contractx.KindUnknown
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := kindForCode(apiErr.ErrorCode()); ok {
			return kind
		}
	}

	if status := httpStatus(err); status != 0 {
		if kind, ok := kindForStatus(status); ok {
			return kind
		}
	}

	if apiErr != nil && apiErr.ErrorFault() == smithy.FaultServer {
		return contractx.KindTransient
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return contractx.KindTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contractx.KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return contractx.KindTransient
	}

	return contractx.KindUnknown
}

func kindForCode(code string) (contractx.ErrorKind, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	if kind, ok := codeKinds[code]; ok {
		return kind, true
	}
	// EC2 qualifies codes per resource, e.g. InvalidInstanceID.NotFound.
	switch {
	case strings.HasSuffix(code, ".NotFound"):
		return contractx.KindNotFound, true
	case strings.HasSuffix(code, ".Malformed"):
		return contractx.KindInvalidInput, true
	}
	return "", false
}

func kindForStatus(status int) (contractx.ErrorKind, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return contractx.KindThrottled, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return contractx.KindUnauthorized, true
	case status == http.StatusNotFound:
		return contractx.KindNotFound, true
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return contractx.KindTransient, true
	default:
		return "", false
	}
}

func httpStatus(err error) int {
	var awsRespErr *awshttp.ResponseError
	if errors.As(err, &awsRespErr) && awsRespErr.ResponseError != nil {
		return statusOf(awsRespErr.ResponseError)
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return statusOf(respErr)
	}
	return 0
}

func statusOf(respErr *smithyhttp.ResponseError) int {
	if respErr == nil || respErr.Response == nil || respErr.Response.Response == nil {
		return 0
	}
	return respErr.Response.StatusCode
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
