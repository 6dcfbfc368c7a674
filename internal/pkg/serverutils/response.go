package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
)

type BaseResponse struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func SuccessResponse(message string, data interface{}) BaseResponse {
	return BaseResponse{
		Success: true,
		Code:    fiber.StatusOK,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string, details ...string) BaseResponse {
	return BaseResponse{
		Success: false,
		Code:    code,
		Message: message,
		Errors:  details,
	}
}

var validate = validator.New()

// ValidateRequest checks the validate tags of a request DTO.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

// ErrorHandlerMiddleware turns errors returned by handlers into the
// ErrorResponse envelope with a status matching the error class.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message, details := classify(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message, details...))
	}
}

func classify(err error) (int, string, []string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message, nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fiber.StatusBadRequest, "Validation failed", details
	}

	switch {
	case errors.Is(err, zoning.ErrInvalidPolicy),
		errors.Is(err, zoning.ErrInvalidLimit),
		errors.Is(err, zoning.ErrEmptyMunicipality),
		errors.Is(err, rdppf.ErrUnknownMunicipality),
		errors.Is(err, rdppf.ErrMissingParcelNumber):
		return fiber.StatusBadRequest, err.Error(), nil
	case errors.Is(err, rdppf.ErrExtractNotFound):
		return fiber.StatusNotFound, err.Error(), nil
	case errors.Is(err, rdppf.ErrUpstream):
		return fiber.StatusBadGateway, err.Error(), nil
	}

	return fiber.StatusInternalServerError, "Internal server error", []string{err.Error()}
}
