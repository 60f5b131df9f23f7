package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/stats"
	"github.com/labstack/echo/v4"
)

type submitPayload struct {
	CollectionID string `json:"collectionId"`
	Environment  string `json:"environment,omitempty"`
	model.Definition
}

// requestPatch is a partial update. Absent or empty fields keep the
// stored value.
type requestPatch struct {
	CollectionID string          `json:"collectionId"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Method       model.Method    `json:"method"`
	URL          string          `json:"url"`
	Headers      []model.Header  `json:"headers"`
	Body         *string         `json:"body"`
	BodyType     *model.BodyType `json:"bodyType"`
	Version      int64           `json:"version"`
}

// ExecutionResponse reports a pipeline run. Request is the committed
// record and is present even when the execution failed.
type ExecutionResponse struct {
	Request    *model.PersistedRequest `json:"request,omitempty"`
	State      model.AttemptState      `json:"state"`
	DurationMs int64                   `json:"durationMs"`
	Error      *ErrorBody              `json:"error,omitempty"`
	Unresolved []string                `json:"unresolved,omitempty"`
}

func executionResponse(report *runner.Report, okStatus int) (int, HttpJsonResp[ExecutionResponse]) {
	resp := ExecutionResponse{
		Request:    report.Request,
		State:      report.Outcome.State,
		DurationMs: report.Outcome.Duration().Milliseconds(),
		Unresolved: report.Unresolved,
	}
	status := okStatus
	if report.Outcome.Err != nil {
		var body ErrorBody
		status, body = describe(report.Outcome.Err)
		resp.Error = &body
	}
	return status, HttpJsonResp[ExecutionResponse]{Data: resp}
}

func (s *Server) submitRequest(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "read body")
	}
	if err := checkPayload(requestSchema, raw); err != nil {
		return err
	}
	var payload submitPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "decode request")
	}

	execute := true
	if v := c.QueryParam("execute"); v != "" {
		if execute, err = strconv.ParseBool(v); err != nil {
			return errdef.New(errdef.KindValidation, "execute must be a boolean, got %q", v)
		}
	}

	report, err := s.runner.Submit(c.Request().Context(), runner.SubmitInput{
		Owner:        userFrom(c),
		CollectionID: payload.CollectionID,
		Environment:  payload.Environment,
		Definition:   payload.Definition,
		Execute:      execute,
	})
	if err != nil {
		return err
	}
	status, body := executionResponse(report, http.StatusCreated)
	return c.JSON(status, body)
}

func (s *Server) executeRequest(c echo.Context) error {
	report, err := s.runner.Rerun(c.Request().Context(), runner.RerunInput{
		Owner:       userFrom(c),
		RequestID:   c.Param("id"),
		Environment: c.QueryParam("environment"),
	})
	if err != nil {
		return err
	}
	status, body := executionResponse(report, http.StatusOK)
	return c.JSON(status, body)
}

func (s *Server) listRequests(c echo.Context) error {
	ctx := c.Request().Context()
	var list []*model.PersistedRequest
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		list, err = sess.ListRequests(ctx, userFrom(c), c.QueryParam("collection"))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[[]*model.PersistedRequest]{Data: list})
}

func (s *Server) getRequest(c echo.Context) error {
	ctx := c.Request().Context()
	var r *model.PersistedRequest
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		r, err = sess.GetRequest(ctx, userFrom(c), c.Param("id"))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.PersistedRequest]{Data: r})
}

func (s *Server) updateRequest(c echo.Context) error {
	var patch requestPatch
	if err := json.NewDecoder(c.Request().Body).Decode(&patch); err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "decode request patch")
	}

	ctx := c.Request().Context()
	owner := userFrom(c)
	var updated *model.PersistedRequest
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		current, err := sess.GetRequest(ctx, owner, c.Param("id"))
		if err != nil {
			return err
		}
		next := applyPatch(current, patch)
		if err := request.Validate(&next.Definition); err != nil {
			return err
		}
		updated, err = sess.UpdateRequest(ctx, next, patch.Version)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.PersistedRequest]{Data: updated})
}

func applyPatch(current *model.PersistedRequest, patch requestPatch) *model.PersistedRequest {
	next := *current
	next.Definition = current.Definition.Clone()
	if patch.CollectionID != "" {
		next.CollectionID = patch.CollectionID
	}
	if patch.Name != "" {
		next.Name = patch.Name
	}
	if patch.Description != nil {
		next.Description = patch.Description
	}
	if patch.Method != "" {
		next.Method = patch.Method
	}
	if patch.URL != "" {
		next.URL = patch.URL
	}
	if patch.Headers != nil {
		next.Headers = patch.Headers
	}
	if patch.Body != nil {
		next.Body = patch.Body
	}
	if patch.BodyType != nil {
		next.BodyType = *patch.BodyType
	}
	return &next
}

func (s *Server) deleteRequest(c echo.Context) error {
	ctx := c.Request().Context()
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		return sess.DeleteRequest(ctx, userFrom(c), c.Param("id"))
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listAttempts(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	attempts, err := s.attempts(c, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[[]model.Attempt]{Data: attempts})
}

func (s *Server) requestStats(c echo.Context) error {
	attempts, err := s.attempts(c, 0)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[stats.Summary]{Data: stats.Summarize(attempts)})
}

func (s *Server) attempts(c echo.Context, limit int) ([]model.Attempt, error) {
	ctx := c.Request().Context()
	var attempts []model.Attempt
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		attempts, err = sess.ListAttempts(ctx, userFrom(c), c.Param("id"), limit)
		return err
	})
	return attempts, err
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errdef.New(errdef.KindValidation, "%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}
