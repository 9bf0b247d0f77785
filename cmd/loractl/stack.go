package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/loractl/internal/controller"
	"github.com/samcharles93/loractl/internal/lora"
	"github.com/samcharles93/loractl/internal/model"
	"github.com/samcharles93/loractl/internal/pipeline"
)

// stack is the assembled run machinery around one base model.
type stack struct {
	base    *model.Model
	host    *model.Host
	toggles *controller.Toggles
	ext     *controller.Extension
	pipe    *pipeline.Pipeline
}

func buildStack(modelFile, dir string, active bool, observer func(context.Context, pipeline.StepEvent)) (*stack, error) {
	base, err := model.Load(modelFile)
	if err != nil {
		return nil, fmt.Errorf("load base model: %w", err)
	}
	st := &stack{
		base:    base,
		host:    model.NewHost(base),
		toggles: controller.NewToggles(active),
	}
	ctrl := controller.New(controller.Options{
		Host:    st.host,
		Loader:  lora.FileLoader{Dir: dir},
		Applier: model.Merger{},
		Toggles: st.toggles,
	})
	st.ext = controller.NewExtension(ctrl)
	st.pipe = pipeline.New(pipeline.Options{
		Extensions: []pipeline.Extension{st.ext},
		SetHighRes: st.toggles.SetHighRes,
		Observer:   observer,
	})
	return st, nil
}

// restored reports whether the host serves the unpatched base model again.
func (st *stack) restored() bool {
	return st.host.Current().Equal(st.base)
}
