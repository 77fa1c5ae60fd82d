package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// downstreamError is the standard error envelope returned by storefront services.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// maps it to an AppError. Bodies in the standard envelope keep their message;
// anything else is reported with the raw body.
func ParseResponseError(resp *http.Response, target string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", target, resp.StatusCode, err)
	}

	var env downstreamError
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", target, resp.StatusCode, body)
	}

	msg := fmt.Sprintf("%s: %s", target, env.Error.Message)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return apperrors.NotFound(target, env.Error.Message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusGone:
		return apperrors.Gone(msg)
	case http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(msg)
	case http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: resp.StatusCode, Err: apperrors.ErrServiceUnavail}
	}
	return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: resp.StatusCode}
}
