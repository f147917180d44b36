package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, 401, "unauthorized", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, 403, "forbidden", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errUpstream returns a 502 error.
func errUpstream(c *fiber.Ctx, msg string) error {
	return newError(c, 502, "upstream_error", msg)
}

// errDistance maps RoutePath lookup errors to responses.
func errDistance(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, geospatial.ErrInvalidDistance):
		return newError(c, 400, "invalid_distance", err.Error())
	case errors.Is(err, geospatial.ErrOutOfRange):
		return newError(c, 422, "out_of_range", err.Error())
	case errors.Is(err, geospatial.ErrDegeneratePath):
		return newError(c, 422, "degenerate_path", err.Error())
	default:
		return errInternal(c, err.Error())
	}
}

// errRoute maps route loading errors to responses.
func errRoute(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "map not found")
	case errors.Is(err, geospatial.ErrDegeneratePath):
		return newError(c, 422, "degenerate_path", err.Error())
	case errors.Is(err, domain.ErrNoRoute):
		return newError(c, 422, "no_route", err.Error())
	default:
		return errUpstream(c, err.Error())
	}
}
