package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type collectionPayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func decodeCollection(c echo.Context) (collectionPayload, error) {
	var payload collectionPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return payload, errdef.Wrap(errdef.KindValidation, err, "decode collection")
	}
	return payload, nil
}

func (s *Server) createCollection(c echo.Context) error {
	payload, err := decodeCollection(c)
	if err != nil {
		return err
	}
	if payload.Name == nil || strings.TrimSpace(*payload.Name) == "" {
		return errdef.New(errdef.KindValidation, "collection name is required")
	}

	ctx := c.Request().Context()
	var created *model.Collection
	err = s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		created, err = sess.CreateCollection(ctx, &model.Collection{
			Owner:       userFrom(c),
			Name:        *payload.Name,
			Description: lo.FromPtr(payload.Description),
		})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, HttpJsonResp[*model.Collection]{Data: created})
}

// listCollections returns the caller's collections, each with its requests.
func (s *Server) listCollections(c echo.Context) error {
	ctx := c.Request().Context()
	owner := userFrom(c)
	var collections []*model.Collection
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		if collections, err = sess.ListCollections(ctx, owner); err != nil {
			return err
		}
		requests, err := sess.ListRequests(ctx, owner, "")
		if err != nil {
			return err
		}
		byCollection := lo.GroupBy(requests, func(r *model.PersistedRequest) string { return r.CollectionID })
		for _, col := range collections {
			col.Requests = byCollection[col.ID]
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[[]*model.Collection]{Data: collections})
}

func (s *Server) getCollection(c echo.Context) error {
	ctx := c.Request().Context()
	owner := userFrom(c)
	var col *model.Collection
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		if col, err = sess.GetCollection(ctx, owner, c.Param("id")); err != nil {
			return err
		}
		col.Requests, err = sess.ListRequests(ctx, owner, col.ID)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.Collection]{Data: col})
}

func (s *Server) updateCollection(c echo.Context) error {
	payload, err := decodeCollection(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var updated *model.Collection
	err = s.store.WithSession(ctx, func(sess *db.Session) error {
		var err error
		updated, err = sess.UpdateCollection(ctx, userFrom(c), c.Param("id"), db.CollectionPatch{
			Name:        payload.Name,
			Description: payload.Description,
		})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HttpJsonResp[*model.Collection]{Data: updated})
}

func (s *Server) deleteCollection(c echo.Context) error {
	ctx := c.Request().Context()
	err := s.store.WithSession(ctx, func(sess *db.Session) error {
		return sess.DeleteCollection(ctx, userFrom(c), c.Param("id"))
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
