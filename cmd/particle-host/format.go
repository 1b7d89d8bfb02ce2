package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// describeStep renders a step on one line.
func describeStep(st host.Step) string {
	var b strings.Builder
	b.WriteString(st.Op)
	switch st.Op {
	case "sync", "update":
		b.WriteString(" ")
		b.WriteString(st.Handle)
	case "event":
		fmt.Fprintf(&b, " %s/%s", slotOrRoot(st.Slot), st.Handler)
	case "template", "model":
		b.WriteString(" ")
		b.WriteString(slotOrRoot(st.Slot))
	case "pump":
		if st.Reverse {
			b.WriteString(" (reverse)")
		}
	}
	if st.Expect != "" {
		fmt.Fprintf(&b, " [expect %s]", st.Expect)
	}
	return b.String()
}

func slotOrRoot(s string) string {
	if s == "" {
		return "root"
	}
	return s
}

// resultLines renders what a step produced, without the step header.
func resultLines(res host.StepResult) []string {
	var out []string
	switch {
	case res.Step.Op == "template" && res.Err == nil:
		out = append(out, fmt.Sprintf("template %q", res.Template))
	case res.Step.Op == "model" && res.Err == nil:
		out = append(out, "model "+formatModel(res.Model))
	case res.Step.Op == "pump" && res.Err == nil:
		out = append(out, fmt.Sprintf("delivered %d", res.Pumped))
	}
	for _, m := range res.Messages {
		out = append(out, m.String())
	}
	return out
}

func formatModel(d particleruntime.Dictionary) string {
	parts := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		parts = append(parts, k+"="+d[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// printer writes a scenario run, styled when attached to a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func (p printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p printer) header(s *session) {
	fmt.Fprintf(p.w, "%s %s\n", p.style(titleStyle, "particle-host"), s.path)
	fmt.Fprintf(p.w, "particle: %s id: %s\n", s.source(), s.rt.ID())
	for _, c := range s.scenario.Handles {
		fmt.Fprintf(p.w, "  %s %s\n", c.Handle, p.style(kindStyle, c.Mode.String()))
	}
	fmt.Fprintln(p.w)
}

func (p printer) messages(msgs []host.Message) {
	for _, m := range msgs {
		fmt.Fprintf(p.w, "  %s\n", m)
	}
}

func (p printer) result(res host.StepResult) {
	fmt.Fprintf(p.w, "%s %s\n", p.style(stepStyle, fmt.Sprintf("[%d]", res.Index)), describeStep(res.Step))
	for _, line := range resultLines(res) {
		fmt.Fprintf(p.w, "  %s\n", line)
	}
	switch {
	case res.Failed() && res.Err != nil:
		fmt.Fprintf(p.w, "  %s\n", p.style(errorStyle, "error: "+res.Err.Error()))
	case res.Failed():
		fmt.Fprintf(p.w, "  %s\n", p.style(errorStyle, "error: expected "+res.Step.Expect))
	case res.Err != nil:
		fmt.Fprintf(p.w, "  %s\n", p.style(resultStyle, "expected error: "+res.Err.Error()))
	}
}
