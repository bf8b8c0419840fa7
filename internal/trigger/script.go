package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/order"
)

// maxScriptOutput caps captured stdout/stderr so a chatty script cannot
// bloat log entries.
const maxScriptOutput = 4096

// scriptTrigger runs a local executable once per accepted order.
//
// The order payload is written to the process's stdin as JSON. A non-zero
// exit status or a timeout is a trigger failure. The process is killed
// when the context deadline passes.
type scriptTrigger struct {
	binary  string
	args    []string
	workDir string
	logger  *logging.Logger
}

func newScriptTrigger(cfg config.TriggerConfig, logger *logging.Logger) *scriptTrigger {
	return &scriptTrigger{
		binary:  cfg.Script.Binary,
		args:    cfg.Script.Args,
		workDir: cfg.Script.WorkDir,
		logger:  logger,
	}
}

func (s *scriptTrigger) Name() string { return "script" }

func (s *scriptTrigger) Fire(ctx context.Context, notification *order.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrFireFailed, err)
	}

	cmd := exec.CommandContext(ctx, s.binary, s.args...)
	cmd.Stdin = bytes.NewReader(payload)
	if s.workDir != "" {
		cmd.Dir = s.workDir
	}

	// Create a new process group so the deadline kills children too.
	// Without this a script that forks (or just sleeps) keeps the output
	// pipes open and Run blocks past the context deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the whole process group (created via Setpgid)
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s timed out: %w", ErrFireFailed, s.binary, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %w (output: %s)",
			ErrFireFailed, s.binary, err, truncateOutput(output.String()))
	}

	if s.logger != nil && output.Len() > 0 {
		s.logger.Debug("trigger script output",
			"binary", s.binary,
			"output", truncateOutput(output.String()),
		)
	}

	return nil
}

func truncateOutput(out string) string {
	out = strings.TrimSpace(out)
	if len(out) > maxScriptOutput {
		return out[:maxScriptOutput] + "...(truncated)"
	}
	return out
}
