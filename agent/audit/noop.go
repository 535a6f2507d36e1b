package audit

import (
	"context"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

// Noop discards records. It is the sink when no database is configured.
type Noop struct{}

var _ contractx.AuditSink = Noop{}

func (Noop) RecordInvocation(context.Context, contractx.InvocationRecord) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
