package engine

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"
)

// writeScript writes an executable shell script that stands in for gnubg.
// The scripts ignore the --tty --quiet flags the engine always passes.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-gnubg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func testOptions(path string) Options {
	return Options{
		Path:            path,
		ResponseTimeout: 100 * time.Millisecond,
		TerminateGrace:  200 * time.Millisecond,
	}
}

// echoScript acknowledges every input line and exits on gnubg's quit
// confirmation sequence.
const echoScript = `
while IFS= read -r line; do
  case "$line" in
    quit) echo "really quit? (y/n)" ;;
    y) exit 0 ;;
    *) echo "ack: $line" ;;
  esac
done
`

func TestProcess_RunEchoesCommand(t *testing.T) {
	p := New(testOptions(writeScript(t, echoScript)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer p.Terminate()

	out, err := p.Run("roll")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !slices.Equal(out, []string{"ack: roll"}) {
		t.Errorf("Run() = %v, want [ack: roll]", out)
	}
}

func TestProcess_StartDrainsBanner(t *testing.T) {
	script := `
echo "GNU Backgammon 1.07"
echo "Copyright (C) project"
while IFS= read -r line; do
  case "$line" in
    quit) echo "really quit? (y/n)" ;;
    y) exit 0 ;;
    *) echo "ack: $line" ;;
  esac
done
`
	p := New(testOptions(writeScript(t, script)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer p.Terminate()

	// The first command's response must not contain banner residue.
	out, err := p.Run("show turn")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !slices.Equal(out, []string{"ack: show turn"}) {
		t.Errorf("first Run() = %v, want [ack: show turn]", out)
	}
}

func TestProcess_StartFailure(t *testing.T) {
	p := New(testOptions("/nonexistent/gnubg"))

	err := p.Start()
	if err == nil {
		t.Fatal("Start() should fail for a missing executable")
	}

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Errorf("Start() error = %T, want *LaunchError", err)
	}
}

func TestProcess_TerminateGraceful(t *testing.T) {
	p := New(testOptions(writeScript(t, echoScript)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	p.Terminate()

	if !p.Exited() {
		t.Error("process should have exited after Terminate")
	}
}

func TestProcess_TerminateForceKillsStubbornProcess(t *testing.T) {
	// Acknowledges the quit sequence but never exits.
	script := `
while IFS= read -r line; do
  echo "still here"
done
sleep 60
`
	p := New(testOptions(writeScript(t, script)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	start := time.Now()
	p.Terminate()

	if !p.Exited() {
		t.Error("process should have been force-killed")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Terminate took too long; grace period not honored")
	}
}

func TestProcess_TerminateIdempotent(t *testing.T) {
	p := New(testOptions(writeScript(t, echoScript)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	p.Terminate()
	p.Terminate() // must not panic or block
}

func TestProcess_TerminateBeforeStart(t *testing.T) {
	p := New(testOptions("/nonexistent/gnubg"))
	p.Terminate() // must be a no-op
}

func TestProcess_RunAfterProcessDeath(t *testing.T) {
	// Dies after the first command.
	script := `
read -r line
echo "goodbye"
exit 1
`
	p := New(testOptions(writeScript(t, script)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer p.Terminate()

	out, err := p.Run("move 8 4")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Run() error = %v, want ErrClosed", err)
	}
	if !slices.Equal(out, []string{"goodbye"}) {
		t.Errorf("Run() = %v, want output read before closure", out)
	}
}
