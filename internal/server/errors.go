package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/infinitepi-io/chatrix/internal/translator"
)

const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeAuthentication = "authentication_error"
	errTypeInternal       = "internal_server_error"

	messagesPath = "/v1/messages"
)

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

var (
	errUnauthorized = requestError{
		Status:  http.StatusUnauthorized,
		Message: "Invalid API key",
		Type:    errTypeAuthentication,
	}
	errInternal = requestError{
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Type:    errTypeInternal,
	}
)

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorBody struct {
	Type  string      `json:"type,omitempty"`
	Error errorDetail `json:"error"`
}

func writeError(c echo.Context, reqErr requestError) error {
	payload := errorBody{Error: errorDetail{Message: reqErr.Message, Type: reqErr.Type}}
	if strings.HasPrefix(c.Request().URL.Path, messagesPath) {
		payload.Type = "error"
	}
	return c.JSON(reqErr.Status, payload)
}

// errorHandler renders every handler error in the envelope of the dialect
// the route speaks.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	reqErr := toHTTPError(err)
	if reqErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c),
			"path", c.Request().URL.Path,
			"err", err,
		)
	}
	if werr := writeError(c, reqErr); werr != nil {
		slog.Error("failed to write error response", "err", werr)
	}
}

func toHTTPError(err error) requestError {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var inputErr *translator.RequestError
	if errors.As(err, &inputErr) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: inputErr.Message,
			Type:    errTypeInvalidRequest,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		errType := errTypeInvalidRequest
		if he.Code == http.StatusUnauthorized {
			errType = errTypeAuthentication
		}
		return requestError{Status: he.Code, Message: msg, Type: errType}
	}

	return errInternal
}
