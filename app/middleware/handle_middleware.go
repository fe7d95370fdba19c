package middleware

import (
	"errors"
	"strings"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by the handle middleware
const (
	LocalDocumentUUID = "document_uuid"
	LocalSessionUUID  = "session_uuid"
)

// HandleMiddleware validates the signed document handle issued by the access
// gate. Viewer-facing document endpoints accept only this handle; they never
// see the share token or any long-lived credential.
type HandleMiddleware struct {
	handleService services.HandleService
}

// NewHandleMiddleware creates a new document handle middleware
func NewHandleMiddleware(handleService services.HandleService) *HandleMiddleware {
	return &HandleMiddleware{
		handleService: handleService,
	}
}

// Authenticate validates the Bearer document handle and stores its claims
// in request locals
func (m *HandleMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Authorization header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_AUTHORIZATION_HEADER",
				},
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid authorization header format. Expected 'Bearer <handle>'",
				Error: dto.ErrorDetail{
					Code: "INVALID_AUTHORIZATION_FORMAT",
				},
			})
		}

		handle := strings.TrimPrefix(authHeader, "Bearer ")
		if handle == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Document handle is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_DOCUMENT_HANDLE",
				},
			})
		}

		claims, err := m.handleService.ValidateHandle(handle)
		if err != nil {
			if errors.Is(err, services.ErrHandleExpired) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
					Success: false,
					Message: "Document handle has expired",
					Error: dto.ErrorDetail{
						Code: "HANDLE_EXPIRED",
					},
				})
			}
			if errors.Is(err, services.ErrHandleRevoked) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
					Success: false,
					Message: "Document handle has been revoked",
					Error: dto.ErrorDetail{
						Code: "HANDLE_REVOKED",
					},
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid document handle",
				Error: dto.ErrorDetail{
					Code: "INVALID_DOCUMENT_HANDLE",
				},
			})
		}

		c.Locals(LocalDocumentUUID, claims.DocumentUUID)
		c.Locals(LocalSessionUUID, claims.SessionUUID)

		return c.Next()
	}
}
