// Package engine manages gnubg subprocesses and their line-oriented
// request/response protocol.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/gammonbot/slackgammon/logger"
)

// ErrClosed is returned when the engine's output stream closes while a
// command response is being drained, typically because the process died.
var ErrClosed = errors.New("engine output stream closed")

// LaunchError indicates the engine executable could not be spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch engine %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Options configures an engine process.
type Options struct {
	// Path is the gnubg executable path.
	Path string
	// ResponseTimeout is the idle period after which a response is complete.
	ResponseTimeout time.Duration
	// TerminateGrace bounds the wait for natural exit before force-kill.
	TerminateGrace time.Duration
}

// Process owns one gnubg subprocess: its stdin write channel and the merged
// stdout+stderr read channel. The protocol is strictly synchronous: one
// command is written, then exactly that response is drained before the next
// write. Callers must serialize Run calls per process.
type Process struct {
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *ResponseReader

	running    bool
	terminated bool

	// waitDone is closed by monitorExit when cmd.Wait() completes.
	// Terminate selects on this channel instead of calling cmd.Wait()
	// again, preventing undefined behavior from double Wait().
	waitDone chan struct{}
}

// New creates a Process for the given options. Start must be called before
// any command is issued.
func New(opts Options) *Process {
	return &Process{
		opts: opts,
		log:  logger.WithComponent("engine"),
	}
}

// Start spawns gnubg in interactive, quiet, line-based text mode, wires its
// stdin and its merged stdout+stderr streams, then drains one idle-timeout
// cycle of output to discard the startup banner. Returns a *LaunchError if
// the process cannot be spawned.
func (p *Process) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	p.log.Debug("starting engine", "path", p.opts.Path)
	startTime := time.Now()

	cmd := exec.Command(p.opts.Path, "--tty", "--quiet")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return &LaunchError{Path: p.opts.Path, Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		p.mu.Unlock()
		return &LaunchError{Path: p.opts.Path, Err: err}
	}
	// gnubg writes prompts and diagnostics to both streams; the protocol
	// treats them as one line-oriented channel.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		p.mu.Unlock()
		return &LaunchError{Path: p.opts.Path, Err: err}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.reader = NewResponseReader(stdout, p.opts.ResponseTimeout)
	p.waitDone = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	go p.monitorExit()

	// Consume the copyright banner so the first command's response starts
	// clean.
	for range p.reader.Lines() {
	}

	p.log.Info("engine started", "pid", cmd.Process.Pid, "elapsed", time.Since(startTime))
	return nil
}

// monitorExit is the sole caller of cmd.Wait(). It reaps the process and
// signals waitDone so Terminate can coordinate without a second Wait().
func (p *Process) monitorExit() {
	err := p.cmd.Wait()
	p.log.Debug("engine exited", "error", err)
	close(p.waitDone)
}

// Send writes one command line to the engine's input stream.
func (p *Process) Send(text string) error {
	p.mu.Lock()
	stdin := p.stdin
	running := p.running
	p.mu.Unlock()

	if !running || stdin == nil {
		return fmt.Errorf("engine not running")
	}

	if _, err := io.WriteString(stdin, text+"\n"); err != nil {
		return fmt.Errorf("failed to write to engine: %w", err)
	}
	return nil
}

// Run sends one command and drains its full response, returning the output
// lines in emission order with separators stripped. It returns once the
// stream goes idle. If the stream closed while draining, the lines read so
// far are returned along with ErrClosed.
func (p *Process) Run(text string) ([]string, error) {
	if err := p.Send(text); err != nil {
		return nil, err
	}

	var lines []string
	for line := range p.reader.Lines() {
		lines = append(lines, line)
	}

	if p.reader.Closed() {
		return lines, ErrClosed
	}
	return lines, nil
}

// Exited reports whether the underlying process has been reaped.
func (p *Process) Exited() bool {
	p.mu.Lock()
	waitDone := p.waitDone
	p.mu.Unlock()

	if waitDone == nil {
		return false
	}
	select {
	case <-waitDone:
		return true
	default:
		return false
	}
}

// Terminate shuts the engine down: it issues gnubg's quit sequence (quit,
// then its y/n confirmation), waits up to the grace period for natural
// exit, and force-kills the process if it is still alive. Safe to call on
// an already-exited process and safe to call more than once.
func (p *Process) Terminate() {
	p.mu.Lock()
	if p.terminated || p.cmd == nil {
		p.terminated = true
		p.mu.Unlock()
		return
	}
	p.terminated = true
	cmd := p.cmd
	waitDone := p.waitDone
	p.mu.Unlock()

	p.log.Debug("terminating engine", "pid", cmd.Process.Pid)

	// Best effort: the process may already be gone, in which case the
	// writes fail and the force-kill path below takes over.
	if err := p.Send("quit"); err == nil {
		for range p.reader.Lines() {
		}
		if err := p.Send("y"); err == nil {
			for range p.reader.Lines() {
			}
		}
	}

	select {
	case <-waitDone:
		p.log.Debug("engine exited gracefully")
	case <-time.After(p.opts.TerminateGrace):
		p.log.Debug("force killing engine", "pid", cmd.Process.Pid)
		cmd.Process.Kill()
		<-waitDone
	}

	p.mu.Lock()
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	p.running = false
	p.mu.Unlock()
}
