package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/newscache"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
	"github.com/DeafMist/verdict-radar/backend/internal/procgroup"
)

// OutputEnv names the variable that tells the generator where to write.
const OutputEnv = "NEWS_OUTPUT_PATH"

// outputPlaceholder in an argument is replaced with the output path.
const outputPlaceholder = "{output}"

const (
	waitDelay   = 2 * time.Second
	stderrLimit = 4 << 10
)

// Process runs an external generator command. Each run gets its own output
// file inside workDir, passed via NEWS_OUTPUT_PATH and the {output}
// placeholder. The file is read only after a zero exit and is removed
// whatever the outcome.
type Process struct {
	argv    []string
	workDir string
	log     *slog.Logger
}

// NewProcess validates argv and returns a Process provider.
func NewProcess(argv []string, workDir string, log *slog.Logger) (*Process, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("process provider: empty command")
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Process{argv: argv, workDir: workDir, log: log}, nil
}

func (p *Process) Name() string { return "process:" + filepath.Base(p.argv[0]) }

// Generate runs the command once, bounded by timeout. On timeout the whole
// process group is killed.
func (p *Process) Generate(ctx context.Context, timeout time.Duration) ([]models.NewsItem, error) {
	outPath, err := p.reserveOutput()
	if err != nil {
		return nil, orchestrator.NewError(orchestrator.KindInternal, "prepare generator output", err)
	}
	defer func() {
		if err := os.Remove(outPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.log.Warn("remove generator output", slog.Any("err", err), slog.String("path", outPath))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, 0, len(p.argv)-1)
	for _, a := range p.argv[1:] {
		args = append(args, strings.ReplaceAll(a, outputPlaceholder, outPath))
	}

	cmd := exec.CommandContext(runCtx, p.argv[0], args...)
	cmd.Env = append(os.Environ(), OutputEnv+"="+outPath)
	var stderr tailBuffer
	stderr.limit = stderrLimit
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	procgroup.Set(cmd)

	start := time.Now()
	p.log.Debug("starting generator", slog.String("cmd", p.argv[0]), slog.String("output", outPath))
	runErr := cmd.Run()
	took := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, orchestrator.NewError(orchestrator.KindProcessTimeout, "run generator",
			fmt.Errorf("no result after %s: %w", timeout, context.DeadlineExceeded))
	}
	if runErr != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			runErr = fmt.Errorf("%w: %s", runErr, tail)
		}
		return nil, orchestrator.NewError(orchestrator.KindProcessFailure, "run generator", runErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, orchestrator.NewError(orchestrator.KindParseError, "read generator output", errors.New("generator exited 0 without writing output"))
		}
		return nil, orchestrator.NewError(orchestrator.KindParseError, "read generator output", err)
	}

	items, err := newscache.DecodeBatch(data)
	if err != nil {
		return nil, orchestrator.NewError(orchestrator.KindParseError, "read generator output", err)
	}

	p.log.Info("generator finished", slog.Int("items", len(items)), slog.Duration("took", took))
	return items, nil
}

// reserveOutput picks a unique, not yet existing path in workDir.
func (p *Process) reserveOutput() (string, error) {
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(p.workDir, "generate-*.json")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return "", err
	}
	return name, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
