package main

import (
	"context"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/logger"
)

// stderrIsTTY is a small seam for tests.
var stderrIsTTY = func() bool { return isTerminal(os.Stderr) }

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := LoadConfig()
	applyLoggingConfig(cmd, cfg)
	level := logLevel
	if debug {
		level = "debug"
	}
	return logger.WithContext(ctx, logger.Setup(os.Stderr, effectiveLogFormat(logFormat, stderrIsTTY()), level)), nil
}

func effectiveLogFormat(format string, tty bool) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "pretty" && !tty {
		return "text"
	}
	return format
}
