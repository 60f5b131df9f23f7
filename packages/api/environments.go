package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/labstack/echo/v4"
)

type environmentPayload struct {
	Name      string           `json:"name"`
	Variables []model.Variable `json:"variables"`
}

func decodeEnvironment(c echo.Context) (environmentPayload, error) {
	var payload environmentPayload
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return payload, errdef.Wrap(errdef.KindValidation, err, "read body")
	}
	if err := checkPayload(environmentSchema, raw); err != nil {
		return payload, err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, errdef.Wrap(errdef.KindValidation, err, "decode environment")
	}
	return payload, nil
}

func (s *Server) createEnvironment(c echo.Context) error {
	payload, err := decodeEnvironment(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(payload.Name) == "" {
		return errdef.New(errdef.KindValidation, "environment name is required")
	}
	if payload.Variables == nil {
		payload.Variables = []model.Variable{}
	}

	ctx := c.Request().Context()
	var created *model.EnvironmentSet
	err = s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		created, err = sess.CreateEnvironment(ctx, &model.EnvironmentSet{
			Owner:     userFrom(c),
			Name:      payload.Name,
			Variables: payload.Variables,
		})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, HttpJsonResp[*model.EnvironmentSet]{Data: created})
}

func (s *Server) listEnvironments(c echo.Context) error {
	ctx := c.Request().Context()
	var envs []*model.EnvironmentSet
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		envs, err = sess.ListEnvironments(ctx, userFrom(c))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[[]*model.EnvironmentSet]{Data: envs})
}

func (s *Server) getEnvironment(c echo.Context) error {
	ctx := c.Request().Context()
	var set *model.EnvironmentSet
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		set, err = sess.GetEnvironment(ctx, userFrom(c), c.Param("id"))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.EnvironmentSet]{Data: set})
}

// updateEnvironment keeps the stored name when none is given and the stored
// variables when the list is absent.
func (s *Server) updateEnvironment(c echo.Context) error {
	payload, err := decodeEnvironment(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var updated *model.EnvironmentSet
	err = s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		updated, err = sess.UpdateEnvironment(ctx, &model.EnvironmentSet{
			ID:        c.Param("id"),
			Owner:     userFrom(c),
			Name:      payload.Name,
			Variables: payload.Variables,
		})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.EnvironmentSet]{Data: updated})
}

func (s *Server) deleteEnvironment(c echo.Context) error {
	ctx := c.Request().Context()
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		return sess.DeleteEnvironment(ctx, userFrom(c), c.Param("id"))
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
