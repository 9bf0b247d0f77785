package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/api"
	"github.com/samcharles93/loractl/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the schedule, resolve and run REST API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr)
			log := logger.FromContext(ctx)

			var runner api.Runner
			if modelPath != "" || modelsPath != "" {
				path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
				if err != nil {
					return cli.Exit("serve: "+err.Error(), 1)
				}
				dir, err := resolveLoraDir(loraDir, path)
				if err != nil {
					return cli.Exit("serve: "+err.Error(), 1)
				}
				st, err := buildStack(path, dir, true, nil)
				if err != nil {
					return cli.Exit("serve: "+err.Error(), 1)
				}
				runner = st.pipe
				log.Info("run endpoints enabled", "model", path, "lora_dir", dir)
			} else {
				log.Info("no base model configured, run endpoints disabled")
			}

			server := api.NewServer(api.NewRunStore(), runner)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
