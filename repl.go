package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tanpawarit/aws-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/aws-assistant/agent/assistant"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/conversation"
	"github.com/tanpawarit/aws-assistant/agent/tool"
)

// chatSession is the part of assistant.Session the REPL drives.
type chatSession interface {
	ID() string
	Ask(ctx context.Context, query string) (string, error)
	Status(ctx context.Context) assistant.Status
	Commands() []tool.Category
	Clear()
	Context() conversation.Summary
	Recent(ctx context.Context, limit int) ([]contractx.InvocationRecord, error)
}

var _ chatSession = (*assistant.Session)(nil)

const helpText = `Ask anything about your S3 buckets, IAM identities or EC2 instances.

Commands:
  help       show this help
  status     check AWS and model connectivity
  commands   list the tools the assistant can use
  clear      forget the conversation so far
  context    summarize the conversation
  audit      show recent tool invocations
  exit       leave (also: quit)`

const recentLimit = 10

// runREPL reads one line per query until exit, EOF or ctx is done. Failures
// are explained to the operator and never end the loop.
func runREPL(ctx context.Context, s chatSession, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "AWS assistant, session %s. Type 'help' for commands.\n", s.ID())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "bye")
			return nil
		case "help":
			fmt.Fprintln(out, helpText)
		case "status":
			renderStatus(out, s.Status(ctx))
		case "commands":
			renderCommands(out, s.Commands())
		case "clear":
			s.Clear()
			fmt.Fprintln(out, "conversation cleared")
		case "context":
			renderContext(out, s.Context())
		case "audit":
			recs, err := s.Recent(ctx, recentLimit)
			if err != nil {
				printWarning(out, "%v", err)
				continue
			}
			renderRecent(out, recs)
		default:
			answer, err := s.Ask(ctx, line)
			if err != nil {
				printError(out, "%s", orchestrator.Explain(err))
				continue
			}
			printAnswer(out, answer)
		}
	}
}
