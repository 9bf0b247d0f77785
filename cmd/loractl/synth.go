package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/model"
	"github.com/samcharles93/loractl/internal/tensor"
)

// synthKeys are the weights of the toy base model.
var synthKeys = []string{
	"unet.input_blocks.0.0.weight",
	"unet.input_blocks.1.1.proj_in.weight",
	"unet.input_blocks.4.1.proj_in.weight",
	"unet.input_blocks.8.1.proj_in.weight",
	"unet.middle_block.1.proj_in.weight",
	"unet.output_blocks.0.1.proj_out.weight",
	"unet.output_blocks.5.1.proj_out.weight",
	"unet.output_blocks.11.1.proj_out.weight",
	"unet.time_embed.0.weight",
	"te.text_model.encoder.layers.0.mlp.fc1.weight",
	"te.text_model.encoder.layers.1.mlp.fc1.weight",
}

type synthOptions struct {
	Dim  int
	Rank int
	Seed uint64
}

// synthPatches maps each toy LoRA to the sub-directory it is written to and
// the key prefixes it patches.
var synthPatches = []struct {
	name     string
	subdir   string
	prefixes []string
}{
	{"style", "", []string{"unet.", "te."}},
	{"detail", "", []string{"unet.output_blocks."}},
	{"subject", "characters", []string{"unet.input_blocks.", "unet.middle_block.", "te."}},
}

func synthCmd() *cli.Command {
	var (
		out  string
		dim  int64
		rank int64
		seed int64
	)

	return &cli.Command{
		Name:  "synth",
		Usage: "Write a toy base model and LoRA files for trying out schedules",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", Value: "loractl-demo", Destination: &out},
			&cli.Int64Flag{Name: "dim", Usage: "width of every square weight", Value: 8, Destination: &dim},
			&cli.Int64Flag{Name: "rank", Usage: "LoRA rank", Value: 2, Destination: &rank},
			&cli.Int64Flag{Name: "seed", Usage: "random seed", Value: 1, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files, err := synthesize(out, synthOptions{Dim: int(dim), Rank: int(rank), Seed: uint64(seed)})
			if err != nil {
				return cli.Exit("synth: "+err.Error(), 1)
			}
			log := logger.FromContext(ctx)
			for _, f := range files {
				log.Info("wrote", "path", f)
			}
			_, _ = fmt.Fprintf(os.Stdout, "try: loractl run --model %s \"<lora:style:1:0@0,1@1> <lora:detail:0.5:1@0,0@1> <lora:subject:1:1:IN00-M00=0.5>\"\n",
				filepath.Join(out, "base.safetensors"))
			return nil
		},
	}
}

// synthesize writes base.safetensors and loras/ under dir and returns the
// files written.
func synthesize(dir string, opts synthOptions) ([]string, error) {
	if opts.Dim <= 0 || opts.Rank <= 0 || opts.Rank > opts.Dim {
		return nil, fmt.Errorf("need 0 < rank <= dim, got rank %d dim %d", opts.Rank, opts.Dim)
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	random := func(r, c int, scale float32) tensor.Mat {
		m := tensor.NewMat(r, c)
		for i := range m.Data {
			m.Data[i] = (rng.Float32()*2 - 1) * scale
		}
		return m
	}

	tensors := make(map[string]tensor.Mat, len(synthKeys)+1)
	for _, key := range synthKeys {
		tensors[key] = random(opts.Dim, opts.Dim, 1)
	}
	tensors["unet.out.2.bias"] = random(1, opts.Dim, 1)
	base, err := model.New(tensors)
	if err != nil {
		return nil, err
	}

	var written []string
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	basePath := filepath.Join(dir, "base.safetensors")
	if err := model.Save(basePath, base); err != nil {
		return nil, err
	}
	written = append(written, basePath)

	for _, sp := range synthPatches {
		p := &lora.Payload{
			Name:     sp.name,
			Metadata: map[string]string{"ss_network_dim": fmt.Sprint(opts.Rank), "ss_output_name": sp.name},
			Unet:     make(map[string]lora.Module),
			TE:       make(map[string]lora.Module),
		}
		for _, key := range synthKeys {
			if !hasAnyPrefix(key, sp.prefixes) {
				continue
			}
			module, ok := model.ModuleName(key)
			if !ok {
				continue
			}
			m := lora.Module{
				Name:     module,
				Down:     random(opts.Rank, opts.Dim, 0.5),
				Up:       random(opts.Dim, opts.Rank, 0.5),
				Alpha:    float32(opts.Rank) / 2,
				HasAlpha: true,
			}
			if strings.HasPrefix(module, lora.PrefixUnet) {
				p.Unet[module] = m
			} else {
				p.TE[module] = m
			}
		}

		loraDir := filepath.Join(dir, "loras", sp.subdir)
		if err := os.MkdirAll(loraDir, 0o755); err != nil {
			return nil, err
		}
		path := filepath.Join(loraDir, sp.name+".safetensors")
		if err := lora.Save(path, p); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
