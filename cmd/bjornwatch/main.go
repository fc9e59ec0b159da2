package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bjornwatch/internal/app"
)

func main() {
	var (
		cfgPath      string
		identityFile string
		timeoutSec   int
		logLevel     string
		noGUI        bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.StringVar(&identityFile, "identity-file", "", "ssh identity file passed with -i")
	flag.IntVar(&timeoutSec, "timeout", 0, "watchdog timeout in seconds (10..300, 0 = use config)")
	flag.StringVar(&logLevel, "log-level", "", "logging level: INFO or DEBUG")
	flag.BoolVar(&noGUI, "no-gui", false, "accepted for compatibility; this build is always headless")
	flag.Parse()
	_ = noGUI // headless either way

	if timeoutSec != 0 && (timeoutSec < 10 || timeoutSec > 300) {
		fmt.Fprintln(os.Stderr, "fatal: --timeout must be between 10 and 300 seconds")
		os.Exit(1)
	}
	if logLevel != "" {
		switch strings.ToUpper(logLevel) {
		case "INFO", "DEBUG":
			logLevel = strings.ToUpper(logLevel)
		default:
			fmt.Fprintln(os.Stderr, "fatal: --log-level must be INFO or DEBUG")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath, app.Overrides{
		IdentityFile:   identityFile,
		TimeoutSeconds: timeoutSec,
		LogLevel:       logLevel,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		_ = a.Stop(context.Background(), "signal")
	case <-a.Done():
		err := a.Err()
		_ = a.Stop(context.Background(), "fatal error")
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
	}
}
