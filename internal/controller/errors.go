package controller

import (
	"errors"
	"fmt"

	"github.com/samcharles93/loractl/internal/lora"
)

var (
	// ErrPatchNotFound is reported when no payload file exists for a patch.
	ErrPatchNotFound = lora.ErrNotFound
	// ErrRunNotActive is returned when stepping or ending a run that was
	// never activated or has already ended.
	ErrRunNotActive = errors.New("controller: run is not active")
)

// PatchApplyError wraps a failure while loading or folding a patch into
// the model.
type PatchApplyError struct {
	Name string
	Err  error
}

func (e *PatchApplyError) Error() string {
	return fmt.Sprintf("patch %s: %v", e.Name, e.Err)
}

func (e *PatchApplyError) Unwrap() error {
	return e.Err
}

// summary is the short form of err used in the end-of-run message.
func summary(err error) string {
	if errors.Is(err, ErrPatchNotFound) {
		return "not found"
	}
	var applyErr *PatchApplyError
	if errors.As(err, &applyErr) {
		return applyErr.Err.Error()
	}
	return err.Error()
}
