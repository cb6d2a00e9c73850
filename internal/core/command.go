package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"
)

// DefaultExecutionTimeout is the default per-command timeout.
const DefaultExecutionTimeout = 5 * time.Minute

// ErrExecutionTimeout is reported when a command exceeds its timeout.
var ErrExecutionTimeout = errors.New("command execution timed out")

// ExecResult holds the result of running one command.
type ExecResult struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration_ns"`
}

// ExecutionReport is one record per executed command.
type ExecutionReport struct {
	// Success is false if any command failed to start or exited non-zero.
	Success bool         `json:"success"`
	Results []ExecResult `json:"results"`
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Shell is the interpreter command line, e.g. "bash -o pipefail".
	// Empty uses $SHELL, then /bin/sh.
	Shell string
	// Timeout bounds each command (default 5 minutes).
	Timeout time.Duration
	// Dir is the working directory (default: current).
	Dir string
	// Logger for execution events.
	Logger *log.Logger
}

// Executor runs approved commands through a shell.
type Executor struct {
	shell   []string
	timeout time.Duration
	dir     string
	logger  *log.Logger
}

// NewExecutor creates an executor. It fails if the shell line cannot be parsed.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	shellLine := opts.Shell
	if shellLine == "" {
		shellLine = os.Getenv("SHELL")
	}
	if shellLine == "" {
		shellLine = "/bin/sh"
	}
	argv, err := shellwords.Parse(shellLine)
	if err != nil {
		return nil, fmt.Errorf("parsing shell %q: %w", shellLine, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("parsing shell %q: empty", shellLine)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultExecutionTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("executor")
	}
	return &Executor{
		shell:   argv,
		timeout: opts.Timeout,
		dir:     opts.Dir,
		logger:  logger,
	}, nil
}

// Run executes commands in order, continuing after failures.
func (x *Executor) Run(ctx context.Context, commands []string) *ExecutionReport {
	report := &ExecutionReport{Success: true, Results: make([]ExecResult, 0, len(commands))}
	for _, command := range commands {
		res := x.runOne(ctx, command)
		if res.ExitCode != 0 {
			x.logger.Debug("command failed", "command", command, "exit_code", res.ExitCode, "stderr", res.Stderr)
			report.Success = false
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (x *Executor) runOne(ctx context.Context, command string) ExecResult {
	start := time.Now()
	res := ExecResult{Command: command}

	if strings.TrimSpace(command) == "" {
		res.ExitCode = -1
		res.Stderr = ErrEmptyCommand.Error()
		return res
	}

	execCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	args := append(append([]string{}, x.shell[1:]...), "-c", command)
	cmd := exec.CommandContext(execCtx, x.shell[0], args...)
	if x.dir != "" {
		cmd.Dir = x.dir
	}
	cmd.Env = os.Environ()
	// Background children may hold the output pipes open after a kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	x.logger.Debug("executing command", "command", command)
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			res.ExitCode = -1
			res.Stderr = appendLine(res.Stderr, ErrExecutionTimeout.Error())
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			res.ExitCode = -1
			res.Stderr = appendLine(res.Stderr, err.Error())
		}
	}
	return res
}

func appendLine(s, line string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s + line
	}
	return s + "\n" + line
}

// FormatReport renders a report as plain text.
func FormatReport(report *ExecutionReport) string {
	var sb strings.Builder
	if report.Success {
		sb.WriteString("All commands executed successfully.\n\n")
	} else {
		sb.WriteString("Some commands failed during execution.\n\n")
	}

	for i, r := range report.Results {
		fmt.Fprintf(&sb, "Command %d: %s\n", i+1, r.Command)
		fmt.Fprintf(&sb, "Exit code: %d\n", r.ExitCode)
		if r.Stdout != "" {
			fmt.Fprintf(&sb, "Output:\n%s\n", r.Stdout)
		}
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "Errors:\n%s\n", r.Stderr)
		}
		sb.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return sb.String()
}
