package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/model"
	"github.com/samcharles93/loractl/internal/safetensors"
)

func inspectCmd() *cli.Command {
	var (
		showTensors bool
		limit       int64
		filter      string
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect base model and LoRA .safetensors files",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tensors", Usage: "list tensors or modules", Destination: &showTensors},
			&cli.Int64Flag{Name: "limit", Usage: "max rows listed (0 = all)", Value: 50, Destination: &limit},
			&cli.StringFlag{Name: "filter", Usage: "only list names containing this substring", Destination: &filter},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("inspect: at least one file is required", 1)
			}
			opts := inspectOptions{Tensors: showTensors, Limit: int(limit), Filter: filter}
			for i, path := range paths {
				if i > 0 {
					_, _ = fmt.Fprintln(os.Stdout)
				}
				if err := inspectFile(os.Stdout, path, opts); err != nil {
					return cli.Exit("inspect: "+err.Error(), 1)
				}
			}
			return nil
		},
	}
}

type inspectOptions struct {
	Tensors bool
	Limit   int
	Filter  string
}

func inspectFile(w io.Writer, path string, opts inspectOptions) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	var params int64
	for _, info := range f.Tensors {
		n, _ := safetensors.NumElements(info.Shape)
		params += int64(n)
	}

	_, _ = fmt.Fprintf(w, "file:       %s\n", path)
	_, _ = fmt.Fprintf(w, "size:       %s\n", humanize.Bytes(uint64(f.Size)))
	_, _ = fmt.Fprintf(w, "tensors:    %s\n", humanize.Comma(int64(len(f.Tensors))))
	_, _ = fmt.Fprintf(w, "parameters: %s\n", humanize.Comma(params))
	for _, k := range slices.Sorted(maps.Keys(f.Metadata)) {
		_, _ = fmt.Fprintf(w, "meta %s: %s\n", k, f.Metadata[k])
	}

	if len(f.NamesWithPrefix("lora_")) > 0 {
		return inspectLora(w, f, opts)
	}
	return inspectModel(w, f, opts)
}

func inspectLora(w io.Writer, f *safetensors.File, opts inspectOptions) error {
	p, err := lora.Decode(strings.TrimSuffix(f.Path, ".safetensors"), f)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "kind:       lora (%d unet, %d te modules", len(p.Unet), len(p.TE))
	if len(p.Ignored) > 0 {
		_, _ = fmt.Fprintf(w, ", %d ignored tensors", len(p.Ignored))
	}
	_, _ = fmt.Fprintln(w, ")")
	if !opts.Tensors {
		return nil
	}

	t := newTable("MODULE", "BLOCK", "OUT x IN", "RANK", "SCALE")
	rows := 0
	for _, group := range []map[string]lora.Module{p.Unet, p.TE} {
		for _, name := range slices.Sorted(maps.Keys(group)) {
			if !matches(name, opts.Filter) {
				continue
			}
			if opts.Limit > 0 && rows >= opts.Limit {
				break
			}
			m := group[name]
			block := moduleBlock(name)
			t.Row(name, block, fmt.Sprintf("%dx%d", m.Up.R, m.Down.C), fmt.Sprint(m.Rank()), fmt.Sprintf("%g", m.Scale()))
			rows++
		}
	}
	return writeTable(w, t)
}

func inspectModel(w io.Writer, f *safetensors.File, opts inspectOptions) error {
	perBlock := make(map[string]int)
	patchable := 0
	for _, name := range f.Names() {
		if _, ok := model.ModuleName(name); ok {
			patchable++
		}
		if b := model.BlockOf(name); b != "" {
			perBlock[b]++
		}
	}
	_, _ = fmt.Fprintf(w, "kind:       base model (%d patchable weights)\n", patchable)
	if len(perBlock) > 0 {
		parts := make([]string, 0, len(perBlock))
		for _, b := range slices.Sorted(maps.Keys(perBlock)) {
			parts = append(parts, fmt.Sprintf("%s=%d", b, perBlock[b]))
		}
		_, _ = fmt.Fprintf(w, "blocks:     %s\n", strings.Join(parts, " "))
	}
	if !opts.Tensors {
		return nil
	}

	t := newTable("TENSOR", "DTYPE", "SHAPE", "SIZE")
	rows := 0
	for _, name := range f.Names() {
		if !matches(name, opts.Filter) {
			continue
		}
		if opts.Limit > 0 && rows >= opts.Limit {
			break
		}
		info, _ := f.Tensor(name)
		t.Row(name, info.DType, fmt.Sprint(info.Shape), humanize.Bytes(uint64(info.End-info.Start)))
		rows++
	}
	return writeTable(w, t)
}

// moduleBlock maps a UNet module name back to its block label.
func moduleBlock(module string) string {
	rest, ok := strings.CutPrefix(module, lora.PrefixUnet)
	if !ok {
		return "-"
	}
	for _, prefix := range []string{"input_blocks_", "output_blocks_"} {
		if idx, found := strings.CutPrefix(rest, prefix); found {
			num, _, _ := strings.Cut(idx, "_")
			if b := model.BlockOf("unet." + strings.TrimSuffix(prefix, "_") + "." + num + ".x"); b != "" {
				return b
			}
		}
	}
	if strings.HasPrefix(rest, "middle_block_") {
		return "M00"
	}
	return "-"
}

func matches(name, filter string) bool {
	return filter == "" || strings.Contains(name, filter)
}
