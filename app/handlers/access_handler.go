package handlers

import (
	"log"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/app/middleware"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AccessHandlerInterface defines the contract for share link access handlers
type AccessHandlerInterface interface {
	Access(c fiber.Ctx) error
	Manifest(c fiber.Ctx) error
}

// AccessHandler handles the public share link access handshake
type AccessHandler struct {
	accessFlow businessflow.AccessFlow
	validator  *validator.Validate
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(accessFlow businessflow.AccessFlow) *AccessHandler {
	return &AccessHandler{
		accessFlow: accessFlow,
		validator:  validator.New(),
	}
}

func (h *AccessHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AccessHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Access handles the share link access handshake
// @Summary Access a shared document
// @Description Validate the link policy, open a view session and return a signed document handle
// @Tags Access
// @Accept json
// @Produce json
// @Param token path string true "Share link token"
// @Param request body dto.AccessRequest true "Access credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AccessResponse} "Session opened"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Incorrect password or missing email"
// @Failure 403 {object} dto.APIResponse "Link disabled, expired or view limit reached"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/share/{token}/access [post]
func (h *AccessHandler) Access(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Share token is required", "INVALID_TOKEN", nil)
	}

	var req dto.AccessRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetReferer(c.Get("Referer"))
	metadata.SetCountry(c.Get("CF-IPCountry"))
	metadata.SetRequestID(c.Get("X-Request-ID"))

	result, err := h.accessFlow.Access(createRequestContext(c, "/api/v1/share/:token/access"), token, &req, metadata)
	if err != nil {
		if businessflow.IsShareLinkNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Share link not found", "SHARE_LINK_NOT_FOUND", nil)
		}
		if businessflow.IsShareLinkDisabled(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Share link is disabled", "SHARE_LINK_DISABLED", nil)
		}
		if businessflow.IsShareLinkExpired(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Share link has expired", "SHARE_LINK_EXPIRED", nil)
		}
		if businessflow.IsViewLimitReached(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "View limit reached", "VIEW_LIMIT_REACHED", nil)
		}
		if businessflow.IsIncorrectPassword(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Incorrect password", "INCORRECT_PASSWORD", nil)
		}
		if businessflow.IsEmailRequired(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Email is required for this link", "EMAIL_REQUIRED", nil)
		}

		log.Println("Share link access failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Access failed", "ACCESS_FAILED", nil)
	}

	middleware.RecordSessionOpened(result.IsUnique)

	return h.SuccessResponse(c, fiber.StatusOK, "Session opened successfully", result)
}

// Manifest returns viewer-facing document metadata for a validated handle
// @Summary Document manifest
// @Description Return document metadata to a viewer holding a valid document handle
// @Tags Access
// @Produce json
// @Param uuid path string true "Document UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DocumentManifestResponse}
// @Failure 401 {object} dto.APIResponse "Missing or invalid document handle"
// @Failure 403 {object} dto.APIResponse "Handle bound to a different document"
// @Failure 404 {object} dto.APIResponse "Document not found"
// @Router /api/v1/documents/{uuid}/manifest [get]
func (h *AccessHandler) Manifest(c fiber.Ctx) error {
	documentUUID := c.Params("uuid")

	// The handle is bound to exactly one document
	if bound, ok := c.Locals(middleware.LocalDocumentUUID).(string); !ok || bound != documentUUID {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Handle is bound to a different document", "HANDLE_DOCUMENT_MISMATCH", nil)
	}

	result, err := h.accessFlow.Manifest(createRequestContext(c, "/api/v1/documents/:uuid/manifest"), documentUUID)
	if err != nil {
		if businessflow.IsDocumentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Document not found", "DOCUMENT_NOT_FOUND", nil)
		}

		log.Println("Document manifest read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read document manifest", "MANIFEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Document manifest retrieved", result)
}
