package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/xbst-tools/xbst/internal/config"
	"github.com/xbst-tools/xbst/internal/logging"
	"github.com/xbst-tools/xbst/internal/tui"
)

func main() {
	configFlag := pflag.StringP("config", "c", config.DefaultPath(), "Path to config file")
	logFlag := pflag.String("log-file", "", "Write logs to this file")
	pflag.Parse()

	if err := run(*configFlag, *logFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads settings and starts the TUI. The log file is closed before it
// returns.
func run(configPath, logPath string) error {
	settings, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}

	logOut, closeLog, err := openLog(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := logging.New(settings.LogLevel, logging.Format(settings.LogFormat), logOut)
	return tui.Run(settings, logger)
}

// openLog opens path for appending. An empty path discards logs.
func openLog(path string) (io.Writer, func() error, error) {
	if path == "" {
		return io.Discard, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
