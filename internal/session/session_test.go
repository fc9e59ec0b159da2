package session

import (
	"context"
	"os/exec"
	"reflect"
	"testing"

	"bjornwatch/internal/config"
	logx "bjornwatch/pkg/logx"
)

func TestBuildCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		goos     string
		cfg      config.SSHConfig
		wantName string
		wantArgs []string
	}{
		{
			name:     "linux default user",
			goos:     "linux",
			cfg:      config.SSHConfig{},
			wantName: "x-terminal-emulator",
			wantArgs: []string{"-e", "bash", "-c", "ssh bjorn@bjorn.home; exec bash"},
		},
		{
			name:     "linux with identity file",
			goos:     "linux",
			cfg:      config.SSHConfig{User: "pi", IdentityFile: "/home/me/.ssh/id_ed25519"},
			wantName: "x-terminal-emulator",
			wantArgs: []string{"-e", "bash", "-c", "ssh -i /home/me/.ssh/id_ed25519 pi@bjorn.home; exec bash"},
		},
		{
			name:     "windows",
			goos:     "windows",
			cfg:      config.SSHConfig{},
			wantName: "cmd.exe",
			wantArgs: []string{"/c", "start", "cmd", "/k", "ssh", "bjorn@bjorn.home"},
		},
		{
			name:     "darwin",
			goos:     "darwin",
			cfg:      config.SSHConfig{IdentityFile: "key"},
			wantName: "osascript",
			wantArgs: []string{"-e", `tell application "Terminal" to do script "ssh -i key bjorn@bjorn.home"`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, args := buildCommand(tt.goos, tt.cfg, "bjorn.home")
			if name != tt.wantName {
				t.Fatalf("name = %q, want %q", name, tt.wantName)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Fatalf("args = %q, want %q", args, tt.wantArgs)
			}
		})
	}
}

func TestLaunchStartsWithoutWaiting(t *testing.T) {
	t.Parallel()
	var started *exec.Cmd
	l := NewLauncher(config.SSHConfig{AutoLaunch: true, User: "bjorn"}, logx.Nop())
	l.start = func(c *exec.Cmd) error {
		started = c
		return nil
	}
	if err := l.Launch(context.Background(), "bjorn.home"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if started == nil {
		t.Fatal("command was not started")
	}
	if len(started.Args) == 0 {
		t.Fatal("command has no argv")
	}
}

func TestLaunchRejectsEmptyHost(t *testing.T) {
	t.Parallel()
	l := NewLauncher(config.SSHConfig{AutoLaunch: true}, logx.Nop())
	if err := l.Launch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty host")
	}
}
