package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/loractl/internal/pipeline"
)

func (s *Server) handleCreateRun(c *echo.Context) error {
	if s.runner == nil {
		return writeServerError(c, "run pipeline not configured")
	}
	req, err := decodeJSON[RunRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Steps <= 0 || req.Steps > maxRunSteps {
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			fmt.Sprintf("steps must be between 1 and %d", maxRunSteps), "steps", "")
	}
	if req.HiresSteps < 0 || req.HiresSteps > maxRunSteps {
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			fmt.Sprintf("hires_steps must be between 0 and %d", maxRunSteps), "hires_steps", "")
	}

	id := newRunID()
	created := s.clock()

	s.runMu.Lock()
	res, runErr := s.runner.Generate(c.Request().Context(), pipeline.Request{
		ID:         id,
		Prompt:     req.Prompt,
		Steps:      req.Steps,
		HiresSteps: req.HiresSteps,
	})
	s.runMu.Unlock()

	if errors.Is(runErr, pipeline.ErrInvalidRequest) {
		return writeBadRequest(c, runErr.Error())
	}

	run := RunResponse{
		ID:          id,
		Object:      "run",
		CreatedAt:   created.Unix(),
		CompletedAt: s.clock().Unix(),
		Status:      "completed",
		Prompt:      req.Prompt,
		Steps:       req.Steps,
		HiresSteps:  req.HiresSteps,
		Directives:  []string{},
		Comments:    []string{},
	}
	if res != nil {
		run.Prompt = res.Prompt
		for _, d := range res.Directives {
			run.Directives = append(run.Directives, d.String())
		}
		run.Comments = append(run.Comments, res.Comments...)
	}
	if runErr != nil {
		run.Status = "failed"
		run.Error = runErr.Error()
	}
	s.store.Save(run)

	if runErr != nil {
		return writeServerError(c, runErr.Error())
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleListRuns(c *echo.Context) error {
	return c.JSON(http.StatusOK, RunList{Object: "list", Data: s.store.List()})
}

func (s *Server) handleGetRun(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "run not found")
	}
	run, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{
		ID:      id,
		Object:  "run",
		Deleted: true,
	})
}
