package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
	"github.com/DeafMist/verdict-radar/backend/internal/procgroup"
)

var errOutputTooLarge = errors.New("extractor output exceeds limit")

// Command runs an external extractor as `argv... <url>` and reads a JSON
// object {success, content, length, error} from its stdout.
type Command struct {
	argv     []string
	timeout  time.Duration
	maxBytes int
	log      *slog.Logger
}

// NewCommand returns a command extractor.
func NewCommand(argv []string, timeout time.Duration, maxBytes int, log *slog.Logger) (*Command, error) {
	if len(argv) == 0 {
		return nil, errors.New("command extractor: empty command")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Command{argv: argv, timeout: timeout, maxBytes: maxBytes, log: log}, nil
}

type commandOutput struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Length  int    `json:"length"`
	Error   string `json:"error"`
}

func (c *Command) Extract(ctx context.Context, rawURL string) (Result, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.argv[1:]...), target)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	stdout := &limitedBuffer{limit: c.maxBytes}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	procgroup.Set(cmd)

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{}, orchestrator.NewError(orchestrator.KindProcessTimeout, "run extractor",
			fmt.Errorf("no result after %s: %w", c.timeout, context.DeadlineExceeded))
	}
	if stdout.overflow {
		return Result{}, orchestrator.NewError(orchestrator.KindProcessFailure, "run extractor", errOutputTooLarge)
	}
	if runErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			runErr = fmt.Errorf("%w: %s", runErr, truncate(msg, 512))
		}
		return Result{}, orchestrator.NewError(orchestrator.KindProcessFailure, "run extractor", runErr)
	}

	var out commandOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout.buf.Bytes()), &out); err != nil {
		return Result{}, orchestrator.NewError(orchestrator.KindParseError, "read extractor output", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "extractor reported failure"
		}
		return Result{}, orchestrator.NewError(orchestrator.KindProcessFailure, "extract", errors.New(msg))
	}
	if strings.TrimSpace(out.Content) == "" {
		return Result{}, orchestrator.NewError(orchestrator.KindParseError, "extract", errors.New("extractor returned no content"))
	}

	c.log.Debug("extracted article", slog.String("url", target), slog.Int("length", len(out.Content)))
	return newResult(out.Content), nil
}

type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.buf.Len()+len(p) > l.limit {
		l.overflow = true
		return 0, errOutputTooLarge
	}
	return l.buf.Write(p)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
