package gateway

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ClaudeCLI sends prompts through the claude command-line tool
type ClaudeCLI struct {
	claudePath string
	model      string
}

// NewClaudeCLI creates a claude CLI gateway. An empty path resolves
// the binary from PATH at call time.
func NewClaudeCLI(claudePath, model string) *ClaudeCLI {
	return &ClaudeCLI{
		claudePath: claudePath,
		model:      model,
	}
}

// Send runs the claude binary in non-interactive mode with the prompt
// on stdin and returns its stdout
func (c *ClaudeCLI) Send(ctx context.Context, prompt string) (string, error) {
	claudePath := c.claudePath
	if claudePath == "" {
		var err error
		claudePath, err = exec.LookPath("claude")
		if err != nil {
			return "", &TransportError{Op: "resolve binary", Err: fmt.Errorf("claude not found in PATH")}
		}
	}

	args := []string{"--print"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	cmd := exec.CommandContext(ctx, claudePath, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &TransportError{Op: "run claude", Err: fmt.Errorf("%w: %s", err, stderr.String())}
	}

	reply := stdout.String()
	if strings.TrimSpace(reply) == "" {
		return "", &TransportError{Op: "run claude", Err: fmt.Errorf("empty reply")}
	}

	return reply, nil
}
