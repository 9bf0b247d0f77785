package schedule

// Evaluate returns the weight of s at the given sampling step.
//
// Progress through the run is step/(maxSteps-stepOffset), or 1 when maxSteps
// is not positive or equals stepOffset. Schedules whose positions are all at
// most 1 are read against that fraction; otherwise positions are absolute
// steps and progress is scaled by maxSteps.
func Evaluate(s Schedule, step, maxSteps, stepOffset int) float64 {
	if len(s.Weights) == 0 {
		return 1.0
	}
	if s.IsConstant() {
		return s.Weights[0]
	}
	// Mismatched control points fall back to the first weight.
	if len(s.Weights) != len(s.Positions) {
		return s.Weights[0]
	}

	progress := 1.0
	if maxSteps > 0 && maxSteps != stepOffset {
		progress = float64(step) / float64(maxSteps-stepOffset)
	}

	t := progress
	if !normalized(s.Positions) {
		t = progress * float64(maxSteps)
	}

	w, p := s.Weights, s.Positions
	for i := 0; i < len(p)-1; i++ {
		if p[i] <= t && t <= p[i+1] {
			span := p[i+1] - p[i]
			if span == 0 {
				return w[i+1]
			}
			return w[i] + (t-p[i])/span*(w[i+1]-w[i])
		}
	}
	if t <= p[0] {
		return w[0]
	}
	return w[len(w)-1]
}

// EvaluateDefault is Evaluate with DefaultStepOffset.
func EvaluateDefault(s Schedule, step, maxSteps int) float64 {
	return Evaluate(s, step, maxSteps, DefaultStepOffset)
}

// Sample evaluates s at every step of a run of the given length.
func (s Schedule) Sample(steps, stepOffset int) []float64 {
	if steps < 0 {
		steps = 0
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = Evaluate(s, i, steps, stepOffset)
	}
	return out
}

func normalized(positions []float64) bool {
	for _, p := range positions {
		if p > 1.0 {
			return false
		}
	}
	return true
}
