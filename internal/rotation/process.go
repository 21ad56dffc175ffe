package rotation

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"syscall"

	"padkeyd/internal/logging"
)

// ProcessController abstracts the emulator process handling so tests can
// substitute a fake.
type ProcessController interface {
	IsRunning(name string) bool
	Kill(name string) error
	Launch(command string) error
}

// execController drives processes with the usual procps tools. The
// emulator is launched by the frontend's runcommand script, not by
// systemd, so unit calls cannot reach it.
type execController struct {
	log *logging.Logger
}

func (c *execController) IsRunning(name string) bool {
	return exec.Command("pgrep", name).Run() == nil
}

func (c *execController) Kill(name string) error {
	if err := exec.Command("killall", name).Run(); err != nil {
		return fmt.Errorf("killall %s: %w", name, err)
	}
	return nil
}

// Launch starts the command in its own session so it survives this
// daemon's restarts.
func (c *execController) Launch(command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", command, err)
	}
	// Reap in the background; the child outlives our interest in it.
	go cmd.Wait()
	return nil
}

var launchCommandRe = regexp.MustCompile(`(?m)^Executing: (.+)$`)

// lastLaunchCommand extracts the emulator command line from the
// launcher's log.
func lastLaunchCommand(logPath string) (string, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return "", fmt.Errorf("read launcher log: %w", err)
	}
	matches := launchCommandRe.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no launch command in %s", logPath)
	}
	return matches[len(matches)-1][1], nil
}
