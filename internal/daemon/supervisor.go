package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

const pidFileName = "daemon.pid"

// Supervisor manages the detached daemon process through a pid file.
type Supervisor struct {
	dir    string
	logger *logging.Logger
}

// NewSupervisor creates a supervisor storing its pid file under dir.
func NewSupervisor(dir string, logger *logging.Logger) *Supervisor {
	return &Supervisor{dir: dir, logger: logger}
}

// Start launches the current executable as a detached daemon process
// running the hidden serve command, and records its pid.
func (s *Supervisor) Start(bind string) error {
	if pid, running := s.runningPID(); running {
		return kserrors.UserError{
			Message:    fmt.Sprintf("Daemon already running with PID %d", pid),
			Suggestion: "Use 'keystone daemon stop' to stop it first",
		}
	}
	// A pid file without a live process is leftover from a crash.
	if err := os.Remove(s.pidPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	cmd := exec.Command(exe, "daemon", "run", "--bind", bind)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.pidPath(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o600); err != nil {
		return fmt.Errorf("daemon started but pid file could not be written: %w", err)
	}

	s.logger.Info("Daemon started with PID %d on %s", cmd.Process.Pid, bind)
	return cmd.Process.Release()
}

// Stop terminates the recorded daemon process and clears the pid file.
func (s *Supervisor) Stop() error {
	pid, running := s.runningPID()
	if !running {
		return kserrors.UserError{
			Message:    "Daemon is not running",
			Suggestion: "Use 'keystone daemon start' to start it",
		}
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon PID %d: %w", pid, err)
	}
	if err := os.Remove(s.pidPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	s.logger.Info("Daemon with PID %d stopped", pid)
	return nil
}

// Status reports whether the daemon is running and under which pid.
func (s *Supervisor) Status() (pid int, running bool) {
	return s.runningPID()
}

// runningPID reads the pid file and checks the process is still alive.
func (s *Supervisor) runningPID() (int, bool) {
	data, err := os.ReadFile(s.pidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, processAlive(pid)
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func (s *Supervisor) pidPath() string {
	return filepath.Join(s.dir, pidFileName)
}
