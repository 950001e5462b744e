package api

import (
	"errors"
	"log/slog"

	"groupdesk/internal/identity"
	"groupdesk/internal/repository"
	"groupdesk/internal/service"
	"groupdesk/internal/validator"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string                 `json:"code"`
	Status  int                    `json:"status"`
	Message string                 `json:"message"`
	Fields  []validator.FieldError `json:"fields,omitempty"`
}

var statusCodes = map[int]string{
	fiber.StatusBadRequest:            "INVALID_ARGUMENT",
	fiber.StatusUnauthorized:          "UNAUTHENTICATED",
	fiber.StatusForbidden:             "PERMISSION_DENIED",
	fiber.StatusNotFound:              "NOT_FOUND",
	fiber.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	fiber.StatusNotAcceptable:         "NOT_ACCEPTABLE",
	fiber.StatusConflict:              "ALREADY_EXISTS",
	fiber.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	fiber.StatusUnsupportedMediaType:  "UNSUPPORTED_MEDIA_TYPE",
	fiber.StatusTooManyRequests:       "RESOURCE_EXHAUSTED",
	fiber.StatusServiceUnavailable:    "UNAVAILABLE",
}

func codeFor(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL"
	}
	return "UNKNOWN"
}

// ErrorHandler maps handler errors to HTTP responses. Unexpected errors are
// logged and reported without detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		body := classify(err)

		if body.Status >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "Request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}

		return c.Status(body.Status).JSON(ErrorResponse{Error: body})
	}
}

func classify(err error) ErrorBody {
	var verr *validator.ValidationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &verr):
		return ErrorBody{
			Code:    "INVALID_ARGUMENT",
			Status:  fiber.StatusBadRequest,
			Message: verr.Error(),
			Fields:  verr.Fields,
		}
	case errors.Is(err, repository.ErrDuplicate):
		return ErrorBody{Code: "DUPLICATE", Status: fiber.StatusBadRequest, Message: "a record with the same unique value already exists"}
	case errors.Is(err, repository.ErrNotFound):
		return ErrorBody{Code: "NOT_FOUND", Status: fiber.StatusNotFound, Message: "resource not found"}
	case errors.Is(err, repository.ErrAlreadyMember):
		return ErrorBody{Code: "ALREADY_EXISTS", Status: fiber.StatusConflict, Message: err.Error()}
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		return ErrorBody{Code: "UNAUTHENTICATED", Status: fiber.StatusUnauthorized, Message: err.Error()}
	case errors.Is(err, identity.ErrForbidden):
		return ErrorBody{Code: "PERMISSION_DENIED", Status: fiber.StatusForbidden, Message: err.Error()}
	case errors.Is(err, service.ErrTooManyAttempts):
		return ErrorBody{Code: "RESOURCE_EXHAUSTED", Status: fiber.StatusTooManyRequests, Message: "too many login attempts, try again later"}
	case errors.Is(err, service.ErrLoginDisabled):
		return ErrorBody{Code: "UNAVAILABLE", Status: fiber.StatusServiceUnavailable, Message: err.Error()}
	case errors.As(err, &fiberErr):
		return ErrorBody{Code: codeFor(fiberErr.Code), Status: fiberErr.Code, Message: fiberErr.Message}
	default:
		return ErrorBody{Code: "INTERNAL", Status: fiber.StatusInternalServerError, Message: "internal server error"}
	}
}
