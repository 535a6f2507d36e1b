package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

// Explain turns a terminal failure into a sentence for the operator. Raw
// provider errors are summarized rather than dumped.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, contractx.ErrInvalidInput):
		return "Please type a question about your S3 buckets, IAM identities or EC2 instances."
	case errors.Is(err, contractx.ErrCycleInProgress):
		return "Still working on the previous question. Wait for it to finish and try again."
	case errors.Is(err, contractx.ErrMaxIterationsExceeded):
		return "I stopped after too many tool calls without reaching an answer. Try a narrower question, for example about one bucket, user or instance."
	case errors.Is(err, contractx.ErrToolNotFound):
		return "The language model kept asking for a tool that does not exist, so I stopped. Rephrase the question or run 'commands' to see what I can look up."
	case errors.Is(err, contractx.ErrModelUnavailable):
		return "The language model could not be reached. Check LLM_API_KEY, LLM_BASE_URL and your network connection, then try again."
	case errors.Is(err, contractx.ErrSchemaViolation):
		return "The language model returned a response I could not use. Please try again."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long and was stopped."
	}

	var awsErr *awsclient.Error
	if errors.As(err, &awsErr) {
		return ExplainKind(awsErr.Kind, fmt.Sprintf("%s %s", awsErr.Service, awsErr.Operation), awsErr.Message())
	}
	return fmt.Sprintf("Something went wrong: %v", err)
}

// ExplainKind describes a classified AWS failure of what.
func ExplainKind(kind contractx.ErrorKind, what, detail string) string {
	var msg string
	switch kind {
	case contractx.KindUnauthorized:
		msg = fmt.Sprintf("Access denied for %s. Check that the IAM user or role behind your credentials has read permission for this service.", what)
	case contractx.KindNotFound:
		msg = fmt.Sprintf("%s failed: the resource does not exist or is not visible to these credentials.", what)
	case contractx.KindThrottled:
		msg = fmt.Sprintf("AWS is throttling %s. Wait a moment and try again.", what)
	case contractx.KindTransient:
		msg = fmt.Sprintf("%s failed because of a network or service problem. Try again shortly.", what)
	case contractx.KindInvalidInput:
		msg = fmt.Sprintf("%s was rejected because a parameter is invalid.", what)
	case contractx.KindToolNotFound:
		msg = fmt.Sprintf("%s is not an available tool.", what)
	default:
		msg = fmt.Sprintf("%s failed for an unknown reason.", what)
	}
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return msg
}
