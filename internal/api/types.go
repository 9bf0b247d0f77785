package api

import "github.com/samcharles93/loractl/internal/weights"

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

type EvaluateRequest struct {
	Schedule   string `json:"schedule"`
	Steps      int    `json:"steps"`
	StepOffset *int   `json:"step_offset,omitempty"`
	Step       *int   `json:"step,omitempty"`
}

type EvaluateResponse struct {
	Object     string    `json:"object"`
	Schedule   string    `json:"schedule"`
	Constant   bool      `json:"constant"`
	Steps      int       `json:"steps"`
	StepOffset int       `json:"step_offset"`
	Step       *int      `json:"step,omitempty"`
	Weight     *float64  `json:"weight,omitempty"`
	Samples    []float64 `json:"samples,omitempty"`
}

// ResolveRequest carries either a raw <lora:...> directive or its parts.
type ResolveRequest struct {
	Directive  string            `json:"directive,omitempty"`
	Name       string            `json:"name,omitempty"`
	Positional []string          `json:"positional,omitempty"`
	Named      map[string]string `json:"named,omitempty"`
}

type ResolveResponse struct {
	Object string         `json:"object"`
	Name   string         `json:"name"`
	Config weights.Config `json:"config"`
}

type RunRequest struct {
	Prompt     string `json:"prompt"`
	Steps      int    `json:"steps"`
	HiresSteps int    `json:"hires_steps,omitempty"`
}

type RunResponse struct {
	ID          string   `json:"id"`
	Object      string   `json:"object"`
	CreatedAt   int64    `json:"created_at"`
	CompletedAt int64    `json:"completed_at,omitempty"`
	Status      string   `json:"status"`
	Prompt      string   `json:"prompt"`
	Steps       int      `json:"steps"`
	HiresSteps  int      `json:"hires_steps,omitempty"`
	Directives  []string `json:"directives"`
	Comments    []string `json:"comments"`
	Error       string   `json:"error,omitempty"`
}

type RunList struct {
	Object string        `json:"object"`
	Data   []RunResponse `json:"data"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
