// FILE: internal/pkg/serverutils/helpers.go
package serverutils

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation on a bound request body.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// ErrorHandlerMiddleware converts unhandled errors into a JSON
// response and keeps stack noise out of the client payload.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Printf("[ERROR] %s %s failed: %v", ctx.Method(), ctx.Path(), err)
		}
		return ctx.Status(code).JSON(fiber.Map{"message": err.Error()})
	}
}
