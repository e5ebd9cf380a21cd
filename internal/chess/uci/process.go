package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const lineBuffer = 256

// Process is a UCI engine running as a child process. Output lines are
// delivered on Lines until the process exits.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Start는 엔진 프로세스만 띄운다. uci 핸드셰이크는 Lines를 읽는 쪽 책임.
func Start(ctx context.Context, binaryPath string, logger *zap.Logger) (*Process, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, lineBuffer),
		logger: logger,
	}
	go p.readLoop(stdoutPipe)
	return p, nil
}

func (p *Process) readLoop(r io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.lines <- line
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("uci_read_error", zap.Error(err))
	}
}

// Lines is closed when the engine's stdout reaches EOF.
func (p *Process) Lines() <-chan string { return p.lines }

func (p *Process) Send(command string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("send %q: engine closed", command)
	}
	p.logger.Debug("uci_send", zap.String("cmd", command))
	if _, err := io.WriteString(p.stdin, command+"\n"); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}

func (p *Process) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	_, _ = io.WriteString(p.stdin, "quit\n")
	p.closed = true
	p.stdin.Close()
	p.mu.Unlock()

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	// 프로세스 종료 후 EOF까지 비움
	go func() {
		for range p.lines {
		}
	}()
	return p.cmd.Wait()
}
