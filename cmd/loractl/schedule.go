package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/schedule"
)

const barWidth = 40

func scheduleCmd() *cli.Command {
	var (
		steps  int64
		offset int64
		noBars bool
	)

	return &cli.Command{
		Name:      "schedule",
		Usage:     "Print the weight a schedule takes at every step of a run",
		ArgsUsage: "<spec>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Usage:       "number of sampling steps",
				Value:       20,
				Destination: &steps,
			},
			&cli.Int64Flag{
				Name:        "offset",
				Usage:       "trailing steps excluded from the progress denominator",
				Value:       schedule.DefaultStepOffset,
				Destination: &offset,
			},
			&cli.BoolFlag{
				Name:        "no-bars",
				Usage:       "omit the bar chart column",
				Destination: &noBars,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyScheduleConfig(cmd, LoadConfig(), &steps, &offset)
			spec := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(spec) == "" {
				return cli.Exit("schedule: a weight spec such as 0@0,1@1 is required", 1)
			}
			if steps <= 0 {
				return cli.Exit("schedule: --steps must be positive", 1)
			}
			s, err := schedule.Parse(spec)
			if err != nil {
				return cli.Exit("schedule: "+err.Error(), 1)
			}
			return writeSchedule(os.Stdout, s, int(steps), int(offset), !noBars)
		},
	}
}

var (
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func writeSchedule(w io.Writer, s schedule.Schedule, steps, offset int, bars bool) error {
	_, _ = fmt.Fprintf(w, "schedule: %s\n", s)
	headers := []string{"STEP", "WEIGHT"}
	if bars {
		headers = append(headers, "")
	}
	t := newTable(headers...)
	for step, weight := range s.Sample(steps, offset) {
		row := []string{fmt.Sprint(step), fmt.Sprintf("%.4f", weight)}
		if bars {
			style := barStyle
			if weight < 0 {
				style = negativeStyle
			}
			row = append(row, style.Render(weightBar(weight)))
		}
		t.Row(row...)
	}
	return writeTable(w, t)
}

// weightBar draws |w| scaled to barWidth for weights in [0, 1]; larger
// weights are capped and marked with '+', negative ones drawn with '-'.
func weightBar(w float64) string {
	char := "#"
	if w < 0 {
		char, w = "-", -w
	}
	n := int(w*barWidth + 0.5)
	if n > barWidth {
		return strings.Repeat(char, barWidth) + "+"
	}
	return strings.Repeat(char, n)
}
