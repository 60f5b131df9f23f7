package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/labstack/echo/v4"
)

// ErrorBody is the JSON shape of a failure.
type ErrorBody struct {
	Kind    errdef.Kind `json:"kind"`
	Message string      `json:"message"`
}

type errorResp struct {
	Error ErrorBody `json:"error"`
}

// StatusFor maps an error kind to the HTTP status the API answers with.
func StatusFor(kind errdef.Kind) int {
	switch kind {
	case errdef.KindValidation, errdef.KindMalformedBody:
		return http.StatusBadRequest
	case errdef.KindAuthorization:
		return http.StatusUnauthorized
	case errdef.KindNotFound:
		return http.StatusNotFound
	case errdef.KindConflict:
		return http.StatusConflict
	case errdef.KindTimeout:
		return http.StatusGatewayTimeout
	case errdef.KindNetwork, errdef.KindProtocol:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// describe returns the body to send for err. Unclassified and internal
// failures get an opaque message.
func describe(err error) (int, ErrorBody) {
	kind := errdef.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		return status, ErrorBody{Kind: errdef.KindInternal, Message: "internal error"}
	}
	return status, ErrorBody{Kind: kind, Message: err.Error()}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := ErrorBody{Kind: kindForStatus(he.Code), Message: fmt.Sprint(he.Message)}
		if writeErr := c.JSON(he.Code, errorResp{Error: body}); writeErr != nil {
			s.log.Error("write error response", "error", writeErr)
		}
		return
	}

	status, body := describe(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request().Method, "uri", c.Request().RequestURI, "error", err)
	}
	if writeErr := c.JSON(status, errorResp{Error: body}); writeErr != nil {
		s.log.Error("write error response", "error", writeErr)
	}
}

func kindForStatus(status int) errdef.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return errdef.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return errdef.KindAuthorization
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return errdef.KindNotFound
	}
	return errdef.KindInternal
}
