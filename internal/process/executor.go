package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

const (
	// maxLineSize bounds a single stdout line; yt-dlp JSON-ish prints stay far below it.
	maxLineSize = 1 << 20
	// maxStderrSize keeps only the tail of a noisy tool's stderr.
	maxStderrSize = 64 << 10
	// waitDelay forces pipes closed after the process is killed on cancellation.
	waitDelay = 5 * time.Second
)

// Output is what a finished command wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Message returns the most useful text for error reporting: stderr if present, else stdout.
func (o Output) Message() string {
	if msg := strings.TrimSpace(string(o.Stderr)); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(o.Stdout))
}

// Executor runs external tools. onLine, when not nil, receives every stdout line as it
// is produced.
type Executor interface {
	Run(ctx context.Context, command string, args []string, onLine func(string)) (Output, error)
}

type OSExecutor struct{}

func NewOSExecutor() *OSExecutor {
	return &OSExecutor{}
}

func (*OSExecutor) Run(ctx context.Context, command string, args []string, onLine func(string)) (Output, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = waitDelay

	logutils.Log.WithFields(map[string]any{
		"command": command,
		"args":    args,
	}).Debug("Executing command")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Output{}, utils.WrapError(err, "failed to create stdout pipe", map[string]any{"command": command})
	}
	stderr := &tailBuffer{limit: maxStderrSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Output{}, utils.WrapError(err, "failed to start command", map[string]any{"command": command})
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		out.WriteString(line)
		out.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	if scanErr := scanner.Err(); scanErr != nil && !errors.Is(scanErr, io.ErrClosedPipe) {
		logutils.Log.WithError(scanErr).WithField("command", command).Warn("Error reading command output")
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	result := Output{Stdout: out.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if waitErr != nil {
		return result, utils.WrapError(waitErr, "command failed", map[string]any{
			"command": command,
			"stderr":  result.Message(),
		})
	}
	return result, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

// MockExecutor is a scripted Executor for tests.
type MockExecutor struct {
	mu       sync.Mutex
	commands []CommandCall
	outputs  map[string]Output
	errors   map[string]error
	handlers map[string]func(args []string) (Output, error)
}

type CommandCall struct {
	Command string
	Args    []string
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		outputs:  make(map[string]Output),
		errors:   make(map[string]error),
		handlers: make(map[string]func(args []string) (Output, error)),
	}
}

// SetOutput scripts the stdout returned for command.
func (m *MockExecutor) SetOutput(command, stdout string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[command] = Output{Stdout: []byte(stdout)}
}

// SetCommandError makes command fail with err and the given stderr.
func (m *MockExecutor) SetCommandError(command string, err error, stderr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[command] = err
	m.outputs[command] = Output{Stderr: []byte(stderr)}
}

// SetHandler lets a test act on the arguments, for example to create the files a tool would write.
func (m *MockExecutor) SetHandler(command string, handler func(args []string) (Output, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[command] = handler
}

func (m *MockExecutor) GetCommands() []CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandCall(nil), m.commands...)
}

func (m *MockExecutor) Run(ctx context.Context, command string, args []string, onLine func(string)) (Output, error) {
	m.mu.Lock()
	m.commands = append(m.commands, CommandCall{Command: command, Args: append([]string(nil), args...)})
	handler := m.handlers[command]
	output := m.outputs[command]
	err := m.errors[command]
	m.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Output{}, ctxErr
	}

	if handler != nil {
		output, err = handler(args)
	}

	if onLine != nil {
		for _, line := range strings.Split(strings.TrimRight(string(output.Stdout), "\n"), "\n") {
			if line != "" {
				onLine(line)
			}
		}
	}
	return output, err
}
