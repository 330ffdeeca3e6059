package oracle

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"

	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
)

// Process runs an external oracle program. Each batch is written to its
// stdin as one JSON line and the reply is the next line on stdout. The
// program is started lazily and restarted after it exits or a call is
// abandoned mid-reply.
type Process struct {
	Path string
	Args []string
	Env  []string

	logger *log.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte
	done  chan struct{}
}

func NewProcess(logger *log.Logger, path string, args ...string) *Process {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Process{Path: path, Args: args, logger: logger}
}

func (p *Process) DecideBatch(ctx context.Context, batch protocol.PerceptionBatch) ([]byte, error) {
	if p == nil || p.Path == "" {
		return nil, ErrNoOracle
	}
	line, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		if err := p.startLocked(); err != nil {
			return nil, err
		}
	}
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		p.killLocked()
		return nil, fmt.Errorf("%w: write: %v", ErrProcessDead, err)
	}

	select {
	case out, ok := <-p.lines:
		if !ok {
			p.killLocked()
			return nil, ErrProcessDead
		}
		return out, nil
	case <-ctx.Done():
		// The reply may still arrive later and would be taken as the
		// answer to the next batch.
		p.killLocked()
		return nil, ctx.Err()
	}
}

func (p *Process) startLocked() error {
	cmd := exec.Command(p.Path, p.Args...)
	if len(p.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start oracle %s: %w", p.Path, err)
	}
	p.logger.Printf("oracle process started: %s pid=%d", p.Path, cmd.Process.Pid)

	lines := make(chan []byte)
	done := make(chan struct{})
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), maxResponseBytes)
		for sc.Scan() {
			b := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- b:
			case <-done:
				return
			}
		}
	}()
	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			p.logger.Printf("oracle stderr: %s", sc.Text())
		}
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.lines = lines
	p.done = done
	return nil
}

func (p *Process) killLocked() {
	if p.cmd == nil {
		return
	}
	close(p.done)
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	err := p.cmd.Wait()
	p.logger.Printf("oracle process stopped: %v", err)
	p.cmd = nil
	p.stdin = nil
	p.lines = nil
	p.done = nil
}

// Close stops the program if it is running.
func (p *Process) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	return nil
}
