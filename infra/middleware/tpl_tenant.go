package middleware

import (
	"strings"

	"template_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Identity headers set by the upstream gateway.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const maxIdentityLength = 128

// TenantIdentity reads the tenant and user from request headers. Requests
// without a tenant are rejected.
func TenantIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := strings.TrimSpace(c.Get(HeaderTenantID))
		if tenantID == "" {
			return apperr.Unauthorized("missing " + HeaderTenantID + " header")
		}
		if len(tenantID) > maxIdentityLength {
			return apperr.Unauthorized("invalid " + HeaderTenantID + " header")
		}

		userID := strings.TrimSpace(c.Get(HeaderUserID))
		if len(userID) > maxIdentityLength {
			return apperr.Unauthorized("invalid " + HeaderUserID + " header")
		}

		c.Locals("tenant_id", tenantID)
		c.Locals("user_id", userID)
		return c.Next()
	}
}

// GetTenantID returns the tenant set by TenantIdentity, or "".
func GetTenantID(c *fiber.Ctx) string {
	tenantID, _ := c.Locals("tenant_id").(string)
	return tenantID
}

// GetUserID returns the user set by TenantIdentity, or "".
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// ValidateUUID rejects path parameters that are not UUIDs. Template ids are
// UUIDs, so a malformed id cannot exist and is reported as not found.
func ValidateUUID(paramName, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params(paramName)); err != nil {
			return apperr.NotFound(resource)
		}
		return c.Next()
	}
}
