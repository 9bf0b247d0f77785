package main

import "github.com/urfave/cli/v3"

var (
	modelPath  string
	modelsPath string
	loraDir    string
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to the base model .safetensors file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing base model .safetensors files",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "lora-dir",
			Aliases:     []string{"l"},
			Usage:       "directory searched (recursively) for LoRA files",
			Sources:     cli.EnvVars(envLoraDir),
			Destination: &loraDir,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text); pretty falls back to text when stderr is not a terminal",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
