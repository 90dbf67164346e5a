package command

import (
	"context"
	"fmt"
	"os/exec"
)

// Config configures the subprocess sink. The alert text is appended as the
// final argument, so gateways like messaging CLIs can be driven directly.
type Config struct {
	Command string
	Args    []string
	Limit   int
}

// Sink delivers alerts by running a configured command once per message.
type Sink struct {
	command string
	args    []string
	limit   int
}

// NewSink creates a subprocess sink.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is empty")
	}
	return &Sink{command: cfg.Command, args: cfg.Args, limit: cfg.Limit}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "command" }

// Limit is the maximum message length (0 = unlimited).
func (s *Sink) Limit() int { return s.limit }

// Send runs the command with the message appended; the context bounds the
// subprocess lifetime.
func (s *Sink) Send(ctx context.Context, text string) error {
	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.args...)
	args = append(args, text)

	out, err := exec.CommandContext(ctx, s.command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("command send failed: %w (output: %s)", err, string(out))
	}
	return nil
}

// Close is a no-op.
func (s *Sink) Close() error { return nil }
