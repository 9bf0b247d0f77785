package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
)

type recorder struct {
	events   []string
	startErr error
	stepErr  error
	hires    *bool
}

func (r *recorder) OnRunStart(_ context.Context, rc *RunContext) error {
	r.events = append(r.events, "start")
	if r.startErr != nil {
		return r.startErr
	}
	rc.OnEachSamplingStep(func(_ context.Context, step, total int) error {
		tag := fmt.Sprintf("step %d/%d", step, total)
		if r.hires != nil && *r.hires {
			tag += " hr"
		}
		r.events = append(r.events, tag)
		if r.stepErr != nil && step == 1 {
			return r.stepErr
		}
		return nil
	})
	return nil
}

func (r *recorder) OnRunEnd(_ context.Context, rc *RunContext) error {
	r.events = append(r.events, "end")
	rc.Comment("done")
	return nil
}

func TestGenerateHookOrder(t *testing.T) {
	t.Parallel()
	hires := false
	rec := &recorder{hires: &hires}
	var observed []StepEvent
	p := New(Options{
		Extensions: []Extension{rec},
		SetHighRes: func(on bool) { hires = on },
		Observer:   func(_ context.Context, ev StepEvent) { observed = append(observed, ev) },
	})

	res, err := p.Generate(context.Background(), Request{
		ID:         "run-1",
		Prompt:     "a cat <lora:style:0.5>  on a mat",
		Steps:      3,
		HiresSteps: 2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"start", "step 0/3", "step 1/3", "step 2/3", "step 0/2 hr", "step 1/2 hr", "end"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("events:\nexpected %v\ngot      %v", want, rec.events)
	}
	if hires {
		t.Error("high-res toggle left on after the run")
	}
	if len(observed) != 5 || observed[3].Pass != PassHighRes || observed[3].RunID != "run-1" {
		t.Errorf("observer events: %+v", observed)
	}
	if res.Prompt != "a cat on a mat" {
		t.Errorf("clean prompt: got %q", res.Prompt)
	}
	if len(res.Directives) != 1 || res.Directives[0].Name != "style" {
		t.Errorf("directives: got %+v", res.Directives)
	}
	if !slices.Equal(res.Comments, []string{"done"}) {
		t.Errorf("comments: got %v", res.Comments)
	}
}

func TestGenerateEndHooksRunAfterStepError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	rec := &recorder{stepErr: boom}

	res, err := New(Options{Extensions: []Extension{rec}}).Generate(context.Background(), Request{Steps: 4})
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	want := []string{"start", "step 0/4", "step 1/4", "end"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("events: expected %v, got %v", want, rec.events)
	}
	if res == nil || res.ID == "" || !slices.Equal(res.Comments, []string{"done"}) {
		t.Fatalf("result should carry a generated id and end hook comments: %+v", res)
	}
}

func TestGenerateStartErrorSkipsLaterExtensions(t *testing.T) {
	t.Parallel()
	first := &recorder{}
	failing := &recorder{startErr: errors.New("no")}
	last := &recorder{}

	_, err := New(Options{Extensions: []Extension{first, failing, last}}).Generate(context.Background(), Request{Steps: 2})
	if err == nil {
		t.Fatal("expected start error")
	}
	if !slices.Equal(first.events, []string{"start", "end"}) {
		t.Errorf("first extension: got %v", first.events)
	}
	if !slices.Equal(failing.events, []string{"start"}) {
		t.Errorf("failing extension should not be ended: got %v", failing.events)
	}
	if len(last.events) != 0 {
		t.Errorf("later extension should not start: got %v", last.events)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	t.Parallel()
	p := New(Options{})
	for _, req := range []Request{{Steps: 0}, {Steps: 2, HiresSteps: -1}} {
		if _, err := p.Generate(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%+v: expected ErrInvalidRequest, got %v", req, err)
		}
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	_, err := New(Options{Extensions: []Extension{rec}}).Generate(ctx, Request{Steps: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !slices.Equal(rec.events, []string{"start", "end"}) {
		t.Fatalf("events: got %v", rec.events)
	}
}
