package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/aws-assistant/agent/assistant"
	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/conversation"
	"github.com/tanpawarit/aws-assistant/agent/tool"
)

type fakeSession struct {
	queries []string
	answer  string
	askErr  error
	cleared int
	recent  []contractx.InvocationRecord
	recErr  error
}

func (f *fakeSession) ID() string { return "sess-test" }

func (f *fakeSession) Ask(_ context.Context, q string) (string, error) {
	f.queries = append(f.queries, q)
	return f.answer, f.askErr
}

func (f *fakeSession) Status(context.Context) assistant.Status {
	return assistant.Status{
		SessionID: "sess-test",
		Region:    "eu-west-1",
		Services: []awsclient.ProbeResult{
			{Service: "s3", Reachable: true, Latency: 12 * time.Millisecond},
			{Service: "iam", Kind: contractx.KindUnauthorized, Message: "AccessDenied: no"},
		},
		Model: assistant.ModelStatus{Model: "gpt-4o-mini", Reachable: true},
	}
}

func (f *fakeSession) Commands() []tool.Category {
	return []tool.Category{{Name: "List", Tools: []contractx.ToolSummary{{Name: "list_s3_buckets", Description: "List buckets"}}}}
}

func (f *fakeSession) Clear() { f.cleared++ }

func (f *fakeSession) Context() conversation.Summary {
	return conversation.Summary{Turns: 2, MaxTurns: 50, UserTurns: 1, LastQuery: "hi", LastAnswer: "hello", LastUpdated: time.Now()}
}

func (f *fakeSession) Recent(context.Context, int) ([]contractx.InvocationRecord, error) {
	return f.recent, f.recErr
}

func runWithInput(t *testing.T, s chatSession, input string) string {
	t.Helper()

	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })

	var out bytes.Buffer
	if err := runREPL(context.Background(), s, strings.NewReader(input), &out); err != nil {
		t.Fatalf("runREPL() error = %v", err)
	}
	return out.String()
}

func TestREPLAsksAndExits(t *testing.T) {
	s := &fakeSession{answer: "You have 2 buckets."}
	out := runWithInput(t, s, "how many buckets?\n\nexit\nnever asked\n")

	if len(s.queries) != 1 || s.queries[0] != "how many buckets?" {
		t.Fatalf("queries = %v", s.queries)
	}
	if !strings.Contains(out, "assistant> You have 2 buckets.") || !strings.Contains(out, "bye") {
		t.Fatalf("output = %q", out)
	}
}

func TestREPLExplainsFailures(t *testing.T) {
	s := &fakeSession{askErr: fmt.Errorf("%w: loop ran 10 cycles", contractx.ErrMaxIterationsExceeded)}
	out := runWithInput(t, s, "list everything\nquit\n")

	if !strings.Contains(out, "✗ ") {
		t.Fatalf("output has no error line: %q", out)
	}
	if len(s.queries) != 1 {
		t.Fatalf("queries = %v", s.queries)
	}
}

func TestREPLSessionCommands(t *testing.T) {
	s := &fakeSession{recErr: assistant.ErrAuditDisabled}
	out := runWithInput(t, s, "help\nSTATUS\ncommands\nclear\ncontext\naudit\n")

	for _, want := range []string{
		"show recent tool invocations",
		"s3: reachable (12ms)",
		"iam: unreachable",
		"list_s3_buckets",
		"conversation cleared",
		"2 of 50",
		assistant.ErrAuditDisabled.Error(),
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if s.cleared != 1 {
		t.Fatalf("cleared = %d, want 1", s.cleared)
	}
	if len(s.queries) != 0 {
		t.Fatalf("session commands reached Ask: %v", s.queries)
	}
}

func TestREPLAuditListing(t *testing.T) {
	s := &fakeSession{recent: []contractx.InvocationRecord{
		{Tool: "list_s3_buckets", Cycle: 1, OK: true, At: time.Now(), Duration: 30 * time.Millisecond},
		{Tool: "get_iam_user_details", Cycle: 2, ErrorKind: contractx.KindNotFound, At: time.Now()},
	}}
	out := runWithInput(t, s, "audit\n")

	if !strings.Contains(out, "list_s3_buckets") || !strings.Contains(out, "not_found") {
		t.Fatalf("output = %q", out)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("a  b\nc", 10); got != "a b c" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate() = %q", got)
	}
}
