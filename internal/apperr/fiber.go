package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type payload struct {
	Type      Kind           `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Action    Action         `json:"action"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

type response struct {
	Error payload `json:"error"`
}

// FiberErrorHandler renders every error returned by a handler in one JSON envelope.
func FiberErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(response{Error: payload{
				Type:    kindForStatus(fe.Code),
				Code:    "http_error",
				Message: fe.Message,
				Action:  ActionFixInput,
			}})
		}

		e := From(err)
		if e.Kind == KindInternal {
			log.Error("unexpected error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(e.Status()).JSON(response{Error: payload{
			Type:      e.Kind,
			Code:      e.Code,
			Message:   e.Message,
			Action:    e.Action,
			Retryable: e.Retryable(),
			Details:   e.Details,
		}})
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return KindValidation
	case fiber.StatusUnauthorized:
		return KindUnauthorized
	case fiber.StatusForbidden:
		return KindForbidden
	case fiber.StatusNotFound:
		return KindNotFound
	case fiber.StatusConflict:
		return KindConflict
	}
	if status >= 500 {
		return KindInternal
	}
	return KindValidation
}
