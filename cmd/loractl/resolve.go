package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/loractl/internal/directive"
	"github.com/samcharles93/loractl/internal/schedule"
	"github.com/samcharles93/loractl/internal/weights"
)

type resolvedPatch struct {
	Name    string         `yaml:"name"`
	Config  weights.Config `yaml:"config"`
	Samples *patchSamples  `yaml:"samples,omitempty"`
}

type patchSamples struct {
	Unet   []float64 `yaml:"unet,flow"`
	TE     []float64 `yaml:"te,flow"`
	HRUnet []float64 `yaml:"hrunet,flow,omitempty"`
	HRTE   []float64 `yaml:"hrte,flow,omitempty"`
}

func resolveCmd() *cli.Command {
	var (
		steps      int64
		hiresSteps int64
	)

	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve the <lora:...> directives of a prompt into weight schedules (YAML)",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Usage:       "also sample every schedule over this many steps",
				Destination: &steps,
			},
			&cli.Int64Flag{
				Name:        "hires-steps",
				Usage:       "also sample the high-resolution schedules over this many steps",
				Destination: &hiresSteps,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			prompt := strings.Join(cmd.Args().Slice(), " ")
			patches, err := resolvePrompt(ctx, prompt, int(steps), int(hiresSteps))
			if err != nil {
				return cli.Exit("resolve: "+err.Error(), 1)
			}
			return writeYAML(os.Stdout, patches)
		},
	}
}

// resolvePrompt resolves every lora directive of prompt. The first
// directive for a name wins, as it does during a run.
func resolvePrompt(ctx context.Context, prompt string, steps, hiresSteps int) ([]resolvedPatch, error) {
	_, ds, err := directive.Parse(prompt)
	if err != nil {
		return nil, err
	}
	ds = directive.Filter(ds, directive.KindLora)
	if len(ds) == 0 {
		return nil, fmt.Errorf("no <lora:...> directives in %q", prompt)
	}

	seen := make(map[string]bool, len(ds))
	out := make([]resolvedPatch, 0, len(ds))
	for _, d := range ds {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		cfg, err := weights.Resolve(ctx, d.Request())
		if err != nil {
			return nil, err
		}
		p := resolvedPatch{Name: d.Name, Config: cfg}
		if steps > 0 {
			p.Samples = &patchSamples{
				Unet: cfg.Unet.Sample(steps, schedule.DefaultStepOffset),
				TE:   cfg.TE.Sample(steps, schedule.DefaultStepOffset),
			}
			if hiresSteps > 0 {
				p.Samples.HRUnet = cfg.HRUnet.Sample(hiresSteps, schedule.DefaultStepOffset)
				p.Samples.HRTE = cfg.HRTE.Sample(hiresSteps, schedule.DefaultStepOffset)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
