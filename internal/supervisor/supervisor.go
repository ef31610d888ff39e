// Package supervisor starts, stops and inspects the manager process through a
// PID marker file.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultPIDFile is the marker written next to the configuration.
const DefaultPIDFile = "bingx_manager.pid"

var (
	// ErrAlreadyRunning is returned by Start when a live process owns the PID file.
	ErrAlreadyRunning = errors.New("manager is already running")
	// ErrNotRunning is returned by Stop when no live process owns the PID file.
	ErrNotRunning = errors.New("manager is not running")
)

// Supervisor controls one background manager process.
type Supervisor struct {
	PIDFile     string
	Command     string   // Executable to launch
	Args        []string // Arguments passed to Command
	GracePeriod time.Duration
	PollEvery   time.Duration
}

// New returns a Supervisor with a 2s stop grace period.
func New(pidFile, command string, args ...string) *Supervisor {
	return &Supervisor{
		PIDFile:     pidFile,
		Command:     command,
		Args:        args,
		GracePeriod: 2 * time.Second,
		PollEvery:   100 * time.Millisecond,
	}
}

// ReadPID returns the PID stored in the marker file.
func (s *Supervisor) ReadPID() (int, error) {
	data, err := os.ReadFile(s.PIDFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file '%s': %q", s.PIDFile, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// IsRunning reports whether the process named by the PID file is alive. A
// marker pointing at a dead or unparsable PID is removed.
func (s *Supervisor) IsRunning() (int, bool) {
	pid, err := s.ReadPID()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = os.Remove(s.PIDFile)
		}
		return 0, false
	}
	if !processAlive(pid) {
		_ = os.Remove(s.PIDFile) // stale marker
		return pid, false
	}
	return pid, true
}

// Start launches the manager detached from the terminal and records its PID.
func (s *Supervisor) Start() (int, error) {
	if pid, ok := s.IsRunning(); ok {
		return pid, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Stdin = nil
	cmd.Stdout = nil // discarded; the manager writes its own log file
	cmd.Stderr = nil
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start '%s': %w", s.Command, err)
	}
	pid := cmd.Process.Pid

	if err := os.WriteFile(s.PIDFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("failed to write pid file '%s': %w", s.PIDFile, err)
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// Stop asks the manager to terminate, waits for the grace period and kills it
// if it is still alive. The PID file is removed afterwards.
func (s *Supervisor) Stop() error {
	pid, ok := s.IsRunning()
	if !ok {
		return ErrNotRunning
	}
	defer os.Remove(s.PIDFile)

	if err := terminate(pid); err != nil {
		if !processAlive(pid) {
			return nil
		}
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(s.GracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(s.PollEvery)
	}
	if !processAlive(pid) {
		return nil
	}
	if err := kill(pid); err != nil && processAlive(pid) {
		return fmt.Errorf("failed to kill pid %d: %w", pid, err)
	}
	return nil
}

// TailLines returns up to the last n lines of the file at path.
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
