package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/pipeline"
)

type runOptions struct {
	ModelPath  string
	LoraDir    string
	Prompt     string
	Steps      int
	HiresSteps int
	Inactive   bool
	Progress   bool
}

func runCmd() *cli.Command {
	var (
		prompt     string
		steps      int64
		hiresSteps int64
		inactive   bool
		noProgress bool
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Drive a scheduled run over a base model and report patch errors",
		ArgsUsage: "[prompt]",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt containing <lora:name:te:unet:...> directives",
				Destination: &prompt,
			},
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Usage:       "sampling steps of the base pass",
				Value:       20,
				Destination: &steps,
			},
			&cli.Int64Flag{
				Name:        "hires-steps",
				Usage:       "sampling steps of the high-resolution pass (0 disables it)",
				Destination: &hiresSteps,
			},
			&cli.BoolFlag{
				Name:        "inactive",
				Usage:       "disable scheduling and pass patches through untouched",
				Destination: &inactive,
			},
			&cli.BoolFlag{
				Name:        "no-progress",
				Usage:       "hide the progress bar",
				Destination: &noProgress,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyRunConfig(cmd, LoadConfig(), &steps, &hiresSteps, &inactive)
			if prompt == "" {
				prompt = strings.Join(cmd.Args().Slice(), " ")
			}
			if strings.TrimSpace(prompt) == "" {
				return cli.Exit("run: --prompt or a prompt argument is required", 1)
			}

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit("run: "+err.Error(), 1)
			}
			dir, err := resolveLoraDir(loraDir, path)
			if err != nil {
				return cli.Exit("run: "+err.Error(), 1)
			}

			_, err = executeRun(ctx, runOptions{
				ModelPath:  path,
				LoraDir:    dir,
				Prompt:     prompt,
				Steps:      int(steps),
				HiresSteps: int(hiresSteps),
				Inactive:   inactive,
				Progress:   !noProgress && stderrIsTTY(),
			}, os.Stdout, os.Stderr)
			if err != nil {
				return cli.Exit("run: "+err.Error(), 1)
			}
			return nil
		},
	}
}

// executeRun drives one run and writes a summary to out. Progress is drawn
// on progress when opts.Progress is set.
func executeRun(ctx context.Context, opts runOptions, out, progress io.Writer) (*pipeline.Result, error) {
	log := logger.FromContext(ctx)

	bar := progressbar.NewOptions(opts.Steps+opts.HiresSteps,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("sampling"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(opts.Progress),
		progressbar.OptionClearOnFinish(),
	)

	var (
		st          *stack
		peakChanged int
	)
	observer := func(ctx context.Context, ev pipeline.StepEvent) {
		_ = bar.Add(1)
		diff, err := st.base.Diff(st.host.Current())
		if err != nil {
			log.Warn("compare with base model", "error", err)
			return
		}
		peakChanged = max(peakChanged, len(diff))
		log.Debug("step", "pass", ev.Pass, "step", ev.Step, "total", ev.Total, "changed_tensors", len(diff))
	}

	st, err := buildStack(opts.ModelPath, opts.LoraDir, !opts.Inactive, observer)
	if err != nil {
		return nil, err
	}

	res, runErr := st.pipe.Generate(ctx, pipeline.Request{
		Prompt:     opts.Prompt,
		Steps:      opts.Steps,
		HiresSteps: opts.HiresSteps,
	})
	_ = bar.Finish()
	if res != nil {
		writeRunSummary(out, res, peakChanged, st.restored())
	}
	if runErr != nil {
		return res, runErr
	}
	if !st.restored() {
		return res, fmt.Errorf("run %s left the model patched", res.ID)
	}
	return res, nil
}

func writeRunSummary(w io.Writer, res *pipeline.Result, peakChanged int, restored bool) {
	_, _ = fmt.Fprintf(w, "run:         %s\n", res.ID)
	_, _ = fmt.Fprintf(w, "steps:       %d", res.Steps)
	if res.HiresSteps > 0 {
		_, _ = fmt.Fprintf(w, " + %d hires", res.HiresSteps)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "prompt:      %s\n", res.Prompt)
	names := make([]string, 0, len(res.Directives))
	for _, d := range res.Directives {
		names = append(names, d.String())
	}
	_, _ = fmt.Fprintf(w, "directives:  %s\n", strings.Join(names, " "))
	_, _ = fmt.Fprintf(w, "peak change: %d tensors\n", peakChanged)
	_, _ = fmt.Fprintf(w, "restored:    %t\n", restored)
	for _, c := range res.Comments {
		_, _ = fmt.Fprintln(w, c)
	}
}
