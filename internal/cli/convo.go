package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// stdinConversation answers the engine's requirements questions from
// the terminal
type stdinConversation struct {
	in  *bufio.Reader
	out io.Writer
}

func newStdinConversation() *stdinConversation {
	return &stdinConversation{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

// NextInput prints the open questions and reads the user's answer,
// terminated by an empty line
func (c *stdinConversation) NextInput(ctx context.Context, questions []string) (string, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, headerStyle.Render("The requirements need your input."))
	for i, q := range questions {
		fmt.Fprintf(c.out, "  %s\n", questionStyle.Render(fmt.Sprintf("%d. %s", i+1, q)))
	}
	if len(questions) == 0 {
		fmt.Fprintln(c.out, questionStyle.Render("  (no specific questions; add whatever detail you can)"))
	}
	fmt.Fprintln(c.out, hintStyle.Render("Type your answer. Finish with an empty line."))

	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, err := c.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			lines = append(lines, trimmed)
		} else if len(lines) > 0 {
			break
		}
		if err == io.EOF {
			if len(lines) == 0 {
				return "", fmt.Errorf("input closed before an answer was given")
			}
			break
		}
	}

	return strings.Join(lines, "\n"), nil
}
