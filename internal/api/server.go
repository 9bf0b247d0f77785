// Package api serves schedule evaluation, weight resolution and scheduled
// runs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/loractl/internal/directive"
	"github.com/samcharles93/loractl/internal/pipeline"
	"github.com/samcharles93/loractl/internal/schedule"
	"github.com/samcharles93/loractl/internal/version"
	"github.com/samcharles93/loractl/internal/weights"
)

const (
	// maxSamples bounds the per-step sample list of one evaluate call.
	maxSamples = 10000
	// maxRunSteps bounds each pass of one run; runs hold the model host.
	maxRunSteps = 1000
)

// Runner executes one scheduled generation.
type Runner interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Server struct {
	store  *RunStore
	runner Runner
	clock  func() time.Time

	// runMu serializes runs; they share one model host.
	runMu sync.Mutex
}

// NewServer returns a Server. A nil runner disables the run endpoints.
func NewServer(store *RunStore, runner Runner) *Server {
	if store == nil {
		store = NewRunStore()
	}
	return &Server{
		store:  store,
		runner: runner,
		clock:  time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/schedules/evaluate", s.handleEvaluate)
	e.POST("/v1/weights/resolve", s.handleResolve)

	e.POST("/v1/runs", s.handleCreateRun)
	e.GET("/v1/runs", s.handleListRuns)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.DELETE("/v1/runs/:id", s.handleDeleteRun)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleEvaluate(c *echo.Context) error {
	req, err := decodeJSON[EvaluateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Schedule) == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "schedule is required", "schedule", "")
	}
	sched, err := schedule.Parse(req.Schedule)
	if err != nil {
		return writeRequestError(c, "schedule", err)
	}

	offset := schedule.DefaultStepOffset
	if req.StepOffset != nil {
		offset = *req.StepOffset
	}
	resp := EvaluateResponse{
		Object:     "schedule.evaluation",
		Schedule:   sched.String(),
		Constant:   sched.IsConstant(),
		Steps:      req.Steps,
		StepOffset: offset,
	}

	if req.Step != nil {
		w := schedule.Evaluate(sched, *req.Step, req.Steps, offset)
		resp.Step = req.Step
		resp.Weight = &w
		return c.JSON(http.StatusOK, resp)
	}
	if req.Steps <= 0 || req.Steps > maxSamples {
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			fmt.Sprintf("steps must be between 1 and %d when step is omitted", maxSamples), "steps", "")
	}
	resp.Samples = sched.Sample(req.Steps, offset)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResolve(c *echo.Context) error {
	req, err := decodeJSON[ResolveRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	wreq, err := resolveRequest(req)
	if err != nil {
		return writeRequestError(c, "directive", err)
	}
	cfg, err := weights.Resolve(c.Request().Context(), wreq)
	if err != nil {
		return writeRequestError(c, "", err)
	}
	return c.JSON(http.StatusOK, ResolveResponse{
		Object: "weight_config",
		Name:   wreq.Name,
		Config: cfg,
	})
}

// resolveRequest builds the resolver input from either form of the request.
func resolveRequest(req ResolveRequest) (weights.Request, error) {
	if strings.TrimSpace(req.Directive) != "" {
		if req.Name != "" || len(req.Positional) > 0 || len(req.Named) > 0 {
			return weights.Request{}, newInvalidRequest("directive and name/positional/named are mutually exclusive")
		}
		_, ds, err := directive.Parse(req.Directive)
		if err != nil {
			return weights.Request{}, newInvalidRequest(err.Error())
		}
		ds = directive.Filter(ds, directive.KindLora)
		if len(ds) != 1 {
			return weights.Request{}, newInvalidRequest(fmt.Sprintf("expected exactly one lora directive, found %d", len(ds)))
		}
		return ds[0].Request(), nil
	}

	name := req.Name
	positional := req.Positional
	if name == "" && len(positional) > 0 {
		name = positional[0]
	}
	if len(positional) == 0 && name != "" {
		positional = []string{name}
	}
	if name == "" {
		return weights.Request{}, newInvalidParam("name", "name or directive is required")
	}
	return weights.Request{Name: name, Positional: positional, Named: req.Named}, nil
}
