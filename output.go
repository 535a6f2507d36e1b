package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tanpawarit/aws-assistant/agent/assistant"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/conversation"
	"github.com/tanpawarit/aws-assistant/agent/tool"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

var noColor bool

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printAnswer(w io.Writer, answer string) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorCyan, "assistant>"), answer)
}

func reachability(ok bool) string {
	if ok {
		return colorize(colorGreen, "reachable")
	}
	return colorize(colorRed, "unreachable")
}

func renderStatus(w io.Writer, st assistant.Status) {
	fmt.Fprintln(w, colorize(colorBold, "Status"))
	printStatus(w, "session", "%s", st.SessionID)
	printStatus(w, "region", "%s", st.Region)
	for _, svc := range st.Services {
		line := fmt.Sprintf("%s (%s)", reachability(svc.Reachable), svc.Latency.Round(time.Millisecond))
		if !svc.Reachable {
			line += fmt.Sprintf(" %s: %s", svc.Kind, svc.Message)
		}
		printStatus(w, svc.Service, "%s", line)
	}
	model := fmt.Sprintf("%s %s", st.Model.Model, reachability(st.Model.Reachable))
	if st.Model.Message != "" {
		model += ": " + st.Model.Message
	}
	printStatus(w, "model", "%s", model)
}

func renderCommands(w io.Writer, cats []tool.Category) {
	if len(cats) == 0 {
		printWarning(w, "no tools registered")
		return
	}
	for _, cat := range cats {
		fmt.Fprintln(w, colorize(colorBold, cat.Name))
		for _, t := range cat.Tools {
			fmt.Fprintf(w, "  %-28s %s\n", t.Name, t.Description)
		}
	}
}

func renderContext(w io.Writer, s conversation.Summary) {
	fmt.Fprintln(w, colorize(colorBold, "Conversation"))
	printStatus(w, "turns", "%d of %d (%d questions, %d tool results)", s.Turns, s.MaxTurns, s.UserTurns, s.ToolTurns)
	if s.Turns == 0 {
		return
	}
	printStatus(w, "last question", "%s", s.LastQuery)
	if s.LastAnswer != "" {
		printStatus(w, "last answer", "%s", truncate(s.LastAnswer, 120))
	}
	printStatus(w, "updated", "%s", humanize.Time(s.LastUpdated))
}

func renderRecent(w io.Writer, recs []contractx.InvocationRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no tool invocations recorded")
		return
	}
	for _, r := range recs {
		outcome := colorize(colorGreen, "ok")
		if !r.OK {
			outcome = colorize(colorRed, string(r.ErrorKind))
		}
		fmt.Fprintf(w, "  %s  cycle %d  %-28s %s (%s)\n",
			r.At.Local().Format(time.TimeOnly), r.Cycle, r.Tool, outcome, r.Duration.Round(time.Millisecond))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
