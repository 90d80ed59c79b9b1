package web

import (
	"errors"
	"strings"

	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/dukex/actionhub/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(e *protocol.Error) int {
	switch e.Kind {
	case protocol.KindArgument,
		protocol.KindConfiguration,
		protocol.KindDatasourceConfiguration,
		protocol.KindActionConfiguration:
		return fiber.StatusBadRequest
	case protocol.KindResourceNotFound:
		return fiber.StatusNotFound
	case protocol.KindAuthentication:
		return fiber.StatusUnauthorized
	case protocol.KindConnectivity:
		if e.Code == protocol.CodeExecutionTimeout {
			return fiber.StatusGatewayTimeout
		}

		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// problemType names the problem after the most specific identifier the
// error carries.
func problemType(e *protocol.Error) string {
	if e.Code != "" {
		return strings.ToLower(e.Code)
	}

	return strings.ToLower(string(e.Kind))
}

// handleServiceError writes err as an RFC 7807 problem.
func handleServiceError(c fiber.Ctx, err error) error {
	if services.IsValidationError(err) {
		return badRequest(c, err.Error())
	}

	var classified *protocol.Error
	if errors.As(err, &classified) {
		status := statusFor(classified)

		problem := problems.NewStatusProblem(status).
			WithInstance(c.Path()).
			WithType(problemType(classified))

		if classified.Message != "" {
			problem = problem.WithDetail(classified.Message)
		} else {
			problem = problem.WithDetail(classified.Error())
		}

		return c.Status(status).JSON(problem)
	}

	// unexpected errors keep their cause out of the response
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error")

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}
