// Package session opens an interactive SSH session to a freshly detected
// device by spawning the platform's terminal emulator.
package session

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"bjornwatch/internal/config"
	logx "bjornwatch/pkg/logx"
)

// Launcher builds and spawns the SSH command. The command runs in a new
// terminal window and is not waited on: the session belongs to the user.
type Launcher struct {
	cfg config.SSHConfig
	log logx.Logger

	// start is swappable for tests; defaults to (*exec.Cmd).Start.
	start func(*exec.Cmd) error
}

func NewLauncher(cfg config.SSHConfig, log logx.Logger) *Launcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Launcher{
		cfg:   cfg,
		log:   log,
		start: func(c *exec.Cmd) error { return c.Start() },
	}
}

// Enabled reports whether detection should trigger an SSH session.
func (l *Launcher) Enabled() bool { return l.cfg.AutoLaunch }

// Launch spawns a terminal running ssh to host. The ssh target uses the
// configured user; the identity file is passed with -i when set.
func (l *Launcher) Launch(ctx context.Context, host string) error {
	if host == "" {
		return errors.New("ssh launch: empty host")
	}
	name, args := buildCommand(runtime.GOOS, l.cfg, host)
	if name == "" {
		return fmt.Errorf("ssh launch: no terminal strategy for %s", runtime.GOOS)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("ssh launch: %w", err)
	}
	l.log.Info("ssh session launched",
		logx.String("host", host),
		logx.String("user", l.cfg.User),
		logx.Int("pid", pidOf(cmd)),
	)

	// Reap the child so finished terminals don't linger as zombies.
	go func() { _ = cmd.Wait() }()
	return nil
}

func pidOf(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

// buildCommand returns the terminal program and argv for the given platform.
// The ssh invocation itself is identical everywhere; only the wrapping
// terminal differs.
func buildCommand(goos string, cfg config.SSHConfig, host string) (string, []string) {
	user := cfg.User
	if user == "" {
		user = "bjorn"
	}
	sshArgs := make([]string, 0, 4)
	if cfg.IdentityFile != "" {
		sshArgs = append(sshArgs, "-i", cfg.IdentityFile)
	}
	sshArgs = append(sshArgs, user+"@"+host)

	switch goos {
	case "windows":
		// start a new cmd window that stays open after ssh exits
		args := append([]string{"/c", "start", "cmd", "/k", "ssh"}, sshArgs...)
		return "cmd.exe", args
	case "darwin":
		script := fmt.Sprintf(`tell application "Terminal" to do script "ssh %s"`, strings.Join(sshArgs, " "))
		return "osascript", []string{"-e", script}
	default:
		inner := "ssh " + strings.Join(sshArgs, " ") + "; exec bash"
		return "x-terminal-emulator", []string{"-e", "bash", "-c", inner}
	}
}
