package response

import "github.com/gofiber/fiber/v2"

// Error codes surfaced to the local UI. They mirror the workflow's error
// taxonomy: validation and capture errors are inline-recoverable, submission
// errors carry the attempt-recorded note in their message.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodePermissionError = "PERMISSION_ERROR"
	CodeDeviceError     = "DEVICE_ERROR"
	CodeInvalidState    = "INVALID_STATE"
	CodeSubmissionError = "SUBMISSION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeServiceError    = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func PermissionError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodePermissionError, message, nil)
}

func DeviceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeDeviceError, message, nil)
}

func InvalidState(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeInvalidState, message, nil)
}

func SubmissionError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeSubmissionError, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
