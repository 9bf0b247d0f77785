// Package weights resolves per-patch directive arguments into weight
// schedules for the UNet, the text encoder and the high-resolution pass.
package weights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/schedule"
)

var ErrInvalidRequest = errors.New("weights: invalid request")

// Request is one patch invocation: the patch name, its positional arguments
// (Positional[0] is the name itself) and its named arguments.
type Request struct {
	Name       string
	Positional []string
	Named      map[string]string
}

// Validate checks the request shape before any schedule is parsed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing patch name", ErrInvalidRequest)
	}
	if len(r.Positional) > 0 && r.Positional[0] != r.Name {
		return fmt.Errorf("%w: first positional argument %q does not match name %q", ErrInvalidRequest, r.Positional[0], r.Name)
	}
	return nil
}

// positional returns argument i, treating blank values as absent.
func (r Request) positional(i int) (string, bool) {
	if i >= len(r.Positional) {
		return "", false
	}
	v := r.Positional[i]
	return v, strings.TrimSpace(v) != ""
}

// named returns a named argument, treating blank values as absent.
func (r Request) named(key string) (string, bool) {
	v, ok := r.Named[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Config is the resolved weight configuration of one patch.
type Config struct {
	Unet   schedule.Schedule `yaml:"unet" json:"unet"`
	TE     schedule.Schedule `yaml:"te" json:"te"`
	HRUnet schedule.Schedule `yaml:"hrunet" json:"hrunet"`
	HRTE   schedule.Schedule `yaml:"hrte" json:"hrte"`
	Blocks Blocks            `yaml:"blocks,omitempty" json:"blocks,omitzero"`
}

// ForPass returns the UNet and text encoder schedules for the base pass or
// the high-resolution pass.
func (c Config) ForPass(highRes bool) (unet, te schedule.Schedule) {
	if highRes {
		return c.HRUnet, c.HRTE
	}
	return c.Unet, c.TE
}

// Resolve maps a request onto a Config. Later sources override earlier ones:
// defaults, positional te/unet/blocks, named te/unet, hr, hrunet/hrte,
// named blocks, then fallback fills.
//
// Errors in te or unet specs are returned. High-resolution and block spec
// errors are logged through the context logger and ignored.
func Resolve(ctx context.Context, req Request) (Config, error) {
	if err := req.Validate(); err != nil {
		return Config{}, err
	}
	log := logger.FromContext(ctx).With("patch", req.Name)

	var (
		te     = schedule.Constant(1.0)
		unet   *schedule.Schedule
		hrunet *schedule.Schedule
		hrte   *schedule.Schedule
		blocks Blocks
	)

	parse := func(field, raw string) (schedule.Schedule, error) {
		s, err := schedule.Parse(raw)
		if err != nil {
			return s, fmt.Errorf("patch %s: %s: %w", req.Name, field, err)
		}
		return s, nil
	}

	if raw, ok := req.positional(1); ok {
		s, err := parse("te", raw)
		if err != nil {
			return Config{}, err
		}
		te = s
	}
	if raw, ok := req.positional(2); ok {
		s, err := parse("unet", raw)
		if err != nil {
			return Config{}, err
		}
		unet = &s
	}
	if raw, ok := req.positional(3); ok && strings.ContainsAny(raw, ";=") {
		b, err := ParseBlocks(raw)
		if err != nil {
			log.Warn("error parsing block weights", "spec", raw, "error", err)
		}
		blocks = b
	}

	if raw, ok := req.named("te"); ok {
		s, err := parse("te", raw)
		if err != nil {
			return Config{}, err
		}
		te = s
	}
	if raw, ok := req.named("unet"); ok {
		s, err := parse("unet", raw)
		if err != nil {
			return Config{}, err
		}
		unet = &s
	}

	bestEffort := func(field string) *schedule.Schedule {
		raw, ok := req.named(field)
		if !ok {
			return nil
		}
		s, err := schedule.Parse(raw)
		if err != nil {
			log.Warn("ignoring high-res weight", "field", field, "spec", raw, "error", err)
			return nil
		}
		return &s
	}
	if hr := bestEffort("hr"); hr != nil {
		hrunet, hrte = hr, hr
	}
	if s := bestEffort("hrunet"); s != nil {
		hrunet = s
	}
	if s := bestEffort("hrte"); s != nil {
		hrte = s
	}

	if raw, ok := req.named("blocks"); ok {
		b, err := ParseBlocks(raw)
		if err != nil {
			log.Warn("error parsing named block weights", "spec", raw, "error", err)
		}
		// Weights and ranges override independently.
		if len(b.Weights) > 0 {
			blocks.Weights = b.Weights
		}
		if len(b.Ranges) > 0 {
			blocks.Ranges = b.Ranges
		}
	}

	cfg := Config{TE: te, Blocks: blocks}
	cfg.Unet = te
	if unet != nil {
		cfg.Unet = *unet
	}
	cfg.HRUnet = cfg.Unet
	if hrunet != nil {
		cfg.HRUnet = *hrunet
	}
	cfg.HRTE = cfg.TE
	if hrte != nil {
		cfg.HRTE = *hrte
	}
	return cfg, nil
}
