package schedule

import "testing"

func TestEvaluateConstant(t *testing.T) {
	t.Parallel()
	s := Constant(0.65)
	for _, step := range []int{0, 3, 100} {
		if got := Evaluate(s, step, 20, DefaultStepOffset); got != 0.65 {
			t.Fatalf("step %d: expected 0.65, got %v", step, got)
		}
	}
}

func TestEvaluateNormalized(t *testing.T) {
	t.Parallel()

	ramp := MustParse("0@0,1@1")
	peak := MustParse("1@0,0.5@0.5,0@1")

	tests := []struct {
		name     string
		s        Schedule
		step     int
		maxSteps int
		offset   int
		want     float64
	}{
		{"ramp midpoint", ramp, 5, 10, 2, 0.625},
		{"ramp start", ramp, 0, 10, 2, 0},
		{"ramp past end clamps", ramp, 10, 10, 2, 1},
		{"peak start", peak, 0, 10, 2, 1},
		{"peak end", peak, 10, 10, 2, 0},
		{"peak quarter", peak, 2, 10, 2, 0.75},
		{"peak three quarters", peak, 6, 10, 2, 0.25},
		{"zero offset", ramp, 5, 10, 0, 0.5},
	}
	for _, tc := range tests {
		got := Evaluate(tc.s, tc.step, tc.maxSteps, tc.offset)
		if !almostEqual(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEvaluateAbsoluteSteps(t *testing.T) {
	t.Parallel()
	// Positions above 1 are step numbers; progress is scaled by maxSteps.
	s := MustParse("1@4,0@12")
	maxSteps := 22 // progress = step/20, t = step*22/20

	tests := []struct {
		step int
		want float64
	}{
		{0, 1},
		{3, 1},
		{10, 1 - (11.0-4)/8},
		{20, 0},
	}
	for _, tc := range tests {
		got := Evaluate(s, tc.step, maxSteps, DefaultStepOffset)
		if !almostEqual(got, tc.want) {
			t.Errorf("step %d: expected %v, got %v", tc.step, tc.want, got)
		}
	}
}

func TestEvaluateBeforeFirstPoint(t *testing.T) {
	t.Parallel()
	s := MustParse("0.3@0.5,0.9@1")
	if got := Evaluate(s, 0, 10, 2); got != 0.3 {
		t.Fatalf("expected first weight before first point, got %v", got)
	}
}

func TestEvaluateZeroDivisionGuard(t *testing.T) {
	t.Parallel()
	s := MustParse("0@0,1@1")
	if got := Evaluate(s, 1, 2, 2); got != 1 {
		t.Fatalf("maxSteps == stepOffset: expected progress 1 (weight 1), got %v", got)
	}
	if got := Evaluate(s, 0, 0, 2); got != 1 {
		t.Fatalf("maxSteps == 0: expected progress 1 (weight 1), got %v", got)
	}
}

func TestEvaluateMismatchedLengths(t *testing.T) {
	t.Parallel()
	s := Points([]float64{0.4, 0.9, 0.1}, []float64{0, 1})
	if got := Evaluate(s, 5, 10, 2); got != 0.4 {
		t.Fatalf("expected first weight fallback, got %v", got)
	}
}

func TestEvaluateZeroWidthBracket(t *testing.T) {
	t.Parallel()
	s := MustParse("0@0.5,1@0.5,1@1")
	if got := Evaluate(s, 4, 10, 2); got != 1 {
		t.Fatalf("expected later weight at step jump, got %v", got)
	}
}

func TestEvaluateEmptySchedule(t *testing.T) {
	t.Parallel()
	if got := Evaluate(Schedule{}, 3, 10, 2); got != 1 {
		t.Fatalf("expected default weight 1, got %v", got)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	t.Parallel()
	s := MustParse("0.2@0,1@0.3,0.4@1")
	first := Evaluate(s, 7, 30, 2)
	for range 10 {
		if got := Evaluate(s, 7, 30, 2); got != first {
			t.Fatalf("expected identical result %v, got %v", first, got)
		}
	}
}

func TestSample(t *testing.T) {
	t.Parallel()
	got := MustParse("0@0,1@1").Sample(6, 2)
	want := []float64{0, 0.25, 0.5, 0.75, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if n := len(Constant(1).Sample(-3, 2)); n != 0 {
		t.Fatalf("expected no samples for negative steps, got %d", n)
	}
}

func TestEvaluateDefault(t *testing.T) {
	t.Parallel()
	s := MustParse("0@0,1@1")
	if EvaluateDefault(s, 5, 10) != Evaluate(s, 5, 10, DefaultStepOffset) {
		t.Fatal("EvaluateDefault should use DefaultStepOffset")
	}
}
