// Package response provides the JSON envelope shared by every API response.
package response

import (
	"template_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// Envelope status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// =============================================================================
// Standard API Response
// =============================================================================

// Response is the standard API response structure.
type Response struct {
	Status  string              `json:"status"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Message string              `json:"message,omitempty"`
	Code    string              `json:"code,omitempty"`
	Meta    *Meta               `json:"meta,omitempty"`
}

// Meta contains pagination and request metadata.
type Meta struct {
	Total     int    `json:"total,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	HasMore   bool   `json:"hasMore,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// =============================================================================
// Response Builders
// =============================================================================

// OK returns a successful response.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// OKWithMeta returns a successful response with metadata.
func OKWithMeta(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(Response{
		Status: StatusSuccess,
		Data:   data,
		Meta:   meta,
	})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// NoContent returns a 204 no content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error returns an error response.
func Error(c *fiber.Ctx, status int, code, message string, errs []apperr.FieldError) error {
	resp := Response{
		Status:  StatusError,
		Code:    code,
		Message: message,
		Errors:  errs,
	}
	if requestID, ok := c.Locals("request_id").(string); ok && requestID != "" {
		resp.Meta = &Meta{RequestID: requestID}
	}
	return c.Status(status).JSON(resp)
}

// FromAppError renders an AppError. Wrapped causes are never exposed.
func FromAppError(c *fiber.Ctx, e *apperr.AppError) error {
	return Error(c, e.Status, e.Code, e.Message, e.Errors)
}
