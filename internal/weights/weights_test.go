package weights

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/samcharles93/loractl/internal/logger"
	"github.com/samcharles93/loractl/internal/schedule"
)

func testContext(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.JSON(buf, slog.LevelDebug))
}

func request(name string, positional []string, named map[string]string) Request {
	return Request{
		Name:       name,
		Positional: append([]string{name}, positional...),
		Named:      named,
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", nil, nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	one := schedule.Constant(1)
	for name, s := range map[string]schedule.Schedule{"te": cfg.TE, "unet": cfg.Unet, "hrunet": cfg.HRUnet, "hrte": cfg.HRTE} {
		if !s.Equal(one) {
			t.Errorf("%s: expected constant 1, got %v", name, s)
		}
	}
	if !cfg.Blocks.IsZero() {
		t.Errorf("expected no block overrides, got %+v", cfg.Blocks)
	}
}

func TestResolvePositionalTEFallback(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", []string{"0@0,1@1"}, nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	te := schedule.MustParse("0@0,1@1")
	if !cfg.TE.Equal(te) {
		t.Fatalf("te: expected %v, got %v", te, cfg.TE)
	}
	if !cfg.Unet.Equal(te) {
		t.Fatalf("unet should fall back to te, got %v", cfg.Unet)
	}
	if !cfg.HRTE.Equal(cfg.TE) || !cfg.HRUnet.Equal(cfg.Unet) {
		t.Fatalf("high-res schedules should fall back to base, got hrte=%v hrunet=%v", cfg.HRTE, cfg.HRUnet)
	}
}

func TestResolvePositionalUnetAndBlocks(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", []string{"0.5", "1@0,0@1", "IN01-OUT11=0.5;M00=0.2"}, nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.TE.Equal(schedule.Constant(0.5)) {
		t.Errorf("te: got %v", cfg.TE)
	}
	if !cfg.Unet.Equal(schedule.MustParse("1@0,0@1")) {
		t.Errorf("unet: got %v", cfg.Unet)
	}
	if got := cfg.Blocks.Ranges["IN01"]; got != (Range{End: "OUT11", Weight: 0.5}) {
		t.Errorf("range IN01: got %+v", got)
	}
	if got := cfg.Blocks.Weights["M00"]; got != 0.2 {
		t.Errorf("block M00: got %v", got)
	}
}

func TestResolvePositionalBlocksRequireSeparator(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", []string{"1", "1", "IN01"}, nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.Blocks.IsZero() {
		t.Fatalf("expected positional text without ; or = to be ignored, got %+v", cfg.Blocks)
	}
}

func TestResolveNamedOverrides(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", []string{"0.5", "0.6", "M00=0.1"}, map[string]string{
		"te":     "0.7",
		"unet":   "0@0,1@1",
		"hr":     "0.3",
		"hrte":   "0.2",
		"blocks": "OUT00=0.9",
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checks := []struct {
		name string
		got  schedule.Schedule
		want schedule.Schedule
	}{
		{"te", cfg.TE, schedule.Constant(0.7)},
		{"unet", cfg.Unet, schedule.MustParse("0@0,1@1")},
		{"hrunet", cfg.HRUnet, schedule.Constant(0.3)},
		{"hrte", cfg.HRTE, schedule.Constant(0.2)},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
	if _, ok := cfg.Blocks.Weights["M00"]; ok {
		t.Error("named blocks should replace positional blocks")
	}
	if cfg.Blocks.Weights["OUT00"] != 0.9 {
		t.Errorf("expected OUT00=0.9, got %+v", cfg.Blocks)
	}
}

func TestResolveHRUnetFallsBackToUnet(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", nil, map[string]string{"unet": "0.4", "hrte": "0.1"}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.HRUnet.Equal(schedule.Constant(0.4)) {
		t.Fatalf("hrunet should fall back to unet, got %v", cfg.HRUnet)
	}
	if !cfg.HRTE.Equal(schedule.Constant(0.1)) {
		t.Fatalf("hrte: got %v", cfg.HRTE)
	}
}

func TestResolveEmptyValuesAreAbsent(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(context.Background(), request("style", []string{"", "0.3"}, map[string]string{"te": ""}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.TE.Equal(schedule.Constant(1)) {
		t.Errorf("te should keep its default, got %v", cfg.TE)
	}
	if !cfg.Unet.Equal(schedule.Constant(0.3)) {
		t.Errorf("unet: got %v", cfg.Unet)
	}
}

func TestResolveParseErrorsPropagate(t *testing.T) {
	t.Parallel()
	for _, req := range []Request{
		request("style", []string{"bad"}, nil),
		request("style", []string{"1", "0@x"}, nil),
		request("style", nil, map[string]string{"te": "nope"}),
		request("style", nil, map[string]string{"unet": "1@@2"}),
	} {
		_, err := Resolve(context.Background(), req)
		if !errors.Is(err, schedule.ErrParse) {
			t.Errorf("request %+v: expected schedule.ErrParse, got %v", req, err)
		}
	}
}

func TestResolveBestEffortFieldsAreLogged(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cfg, err := Resolve(testContext(&buf), request("style", []string{"0.5", "0.5", "IN00=0.1;M00=oops"}, map[string]string{
		"hr": "garbage",
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.HRUnet.Equal(schedule.Constant(0.5)) {
		t.Errorf("invalid hr should be ignored, got %v", cfg.HRUnet)
	}
	if cfg.Blocks.Weights["IN00"] != 0.1 {
		t.Errorf("expected clauses before the failure to be kept, got %+v", cfg.Blocks)
	}
	out := buf.String()
	if !strings.Contains(out, "ignoring high-res weight") || !strings.Contains(out, "error parsing block weights") {
		t.Errorf("expected both failures to be logged, got: %s", out)
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()
	if err := (Request{}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty request: expected ErrInvalidRequest, got %v", err)
	}
	if err := (Request{Name: "a", Positional: []string{"b"}}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("mismatched name: expected ErrInvalidRequest, got %v", err)
	}
	if err := (Request{Name: "a"}).Validate(); err != nil {
		t.Errorf("name only: unexpected error %v", err)
	}
}

func TestConfigForPass(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Unet:   schedule.Constant(1),
		TE:     schedule.Constant(2),
		HRUnet: schedule.Constant(3),
		HRTE:   schedule.Constant(4),
	}
	if u, te := cfg.ForPass(false); u.Weights[0] != 1 || te.Weights[0] != 2 {
		t.Errorf("base pass: got %v %v", u, te)
	}
	if u, te := cfg.ForPass(true); u.Weights[0] != 3 || te.Weights[0] != 4 {
		t.Errorf("high-res pass: got %v %v", u, te)
	}
}

func TestResolveNamedBlocksOverrideWeightsAndRangesSeparately(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		positional string
		named      string
		weights    map[string]float64
		ranges     []string
	}{
		{"weights keep positional ranges", "IN01-OUT11=0.5", "M00=0.2", map[string]float64{"M00": 0.2}, []string{"IN01"}},
		{"ranges keep positional weights", "M00=0.2", "IN04-IN08=0.3", map[string]float64{"M00": 0.2}, []string{"IN04"}},
		{"both replaced", "IN01-OUT11=0.5;M00=0.2", "OUT00=1;IN00-IN02=0", map[string]float64{"OUT00": 1}, []string{"IN00"}},
	}
	for _, tc := range tests {
		cfg, err := Resolve(context.Background(), request("style", []string{"1", "1", tc.positional}, map[string]string{"blocks": tc.named}))
		if err != nil {
			t.Fatalf("%s: Resolve: %v", tc.name, err)
		}
		if len(cfg.Blocks.Weights) != len(tc.weights) {
			t.Errorf("%s: weights %v", tc.name, cfg.Blocks.Weights)
		}
		for k, v := range tc.weights {
			if cfg.Blocks.Weights[k] != v {
				t.Errorf("%s: %s expected %v, got %+v", tc.name, k, v, cfg.Blocks.Weights)
			}
		}
		if len(cfg.Blocks.Ranges) != len(tc.ranges) {
			t.Errorf("%s: ranges %v", tc.name, cfg.Blocks.Ranges)
		}
		for _, start := range tc.ranges {
			if _, ok := cfg.Blocks.Ranges[start]; !ok {
				t.Errorf("%s: missing range %s in %+v", tc.name, start, cfg.Blocks.Ranges)
			}
		}
	}
}
