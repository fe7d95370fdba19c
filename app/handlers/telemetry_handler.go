package handlers

import (
	"encoding/json"
	"log"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/app/middleware"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// TelemetryHandlerInterface defines the contract for telemetry ingestion handlers
type TelemetryHandlerInterface interface {
	PageView(c fiber.Ctx) error
	SessionEnd(c fiber.Ctx) error
	SessionActivity(c fiber.Ctx) error
}

// TelemetryHandler ingests the client emitter's event stream. Events arrive
// either as regular JSON requests or as send-on-unload beacons whose bodies
// are JSON under a text/plain or octet-stream content type, so every endpoint
// decodes the raw body instead of trusting the content-type header.
type TelemetryHandler struct {
	telemetryFlow businessflow.TelemetryFlow
	validator     *validator.Validate
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(telemetryFlow businessflow.TelemetryFlow) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryFlow: telemetryFlow,
		validator:     validator.New(),
	}
}

func (h *TelemetryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TelemetryHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindEvent decodes the raw request body into the event struct and runs
// validation, returning a user-facing error slice on failure
func (h *TelemetryHandler) bindEvent(c fiber.Ctx, out any) (int, string, string, any) {
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fiber.StatusBadRequest, "Invalid event body", "INVALID_REQUEST", err.Error()
	}
	if err := h.validator.Struct(out); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors
	}
	return 0, "", "", nil
}

// PageView handles a page transition event
// @Summary Record a page view
// @Description Append a page view to the session and fold it into the counters
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param request body dto.PageViewEvent true "Page view event"
// @Success 200 {object} dto.APIResponse{data=dto.TelemetryAck} "Event recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/analytics/page-view [post]
func (h *TelemetryHandler) PageView(c fiber.Ctx) error {
	var req dto.PageViewEvent
	if status, msg, code, details := h.bindEvent(c, &req); status != 0 {
		return h.ErrorResponse(c, status, msg, code, details)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	err := h.telemetryFlow.RecordPageView(createRequestContext(c, "/api/v1/analytics/page-view"), &req, metadata)
	if err != nil {
		// A session already swept by retention is not an emitter error: the
		// event is acknowledged and dropped so the client stops retrying.
		if businessflow.IsSessionNotFound(err) {
			return h.SuccessResponse(c, fiber.StatusOK, "Session no longer tracked", dto.TelemetryAck{Recorded: false})
		}
		if businessflow.IsSessionShareMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Session does not belong to share link", "SESSION_SHARE_MISMATCH", nil)
		}
		if businessflow.IsPageOutOfRange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Page number exceeds total pages", "PAGE_OUT_OF_RANGE", nil)
		}

		log.Println("Page view ingestion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record page view", "PAGE_VIEW_FAILED", nil)
	}

	middleware.RecordTelemetryEvent("page_view")
	return h.SuccessResponse(c, fiber.StatusOK, "Page view recorded", dto.TelemetryAck{Recorded: true})
}

// SessionEnd handles the session termination event
// @Summary End a view session
// @Description Record the client's final session totals; last write wins
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param request body dto.SessionEndEvent true "Session end event"
// @Success 200 {object} dto.APIResponse{data=dto.TelemetryAck} "Event recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/analytics/session-end [post]
func (h *TelemetryHandler) SessionEnd(c fiber.Ctx) error {
	var req dto.SessionEndEvent
	if status, msg, code, details := h.bindEvent(c, &req); status != 0 {
		return h.ErrorResponse(c, status, msg, code, details)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	err := h.telemetryFlow.EndSession(createRequestContext(c, "/api/v1/analytics/session-end"), &req, metadata)
	if err != nil {
		if businessflow.IsSessionNotFound(err) {
			return h.SuccessResponse(c, fiber.StatusOK, "Session no longer tracked", dto.TelemetryAck{Recorded: false})
		}
		if businessflow.IsSessionShareMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Session does not belong to share link", "SESSION_SHARE_MISMATCH", nil)
		}

		log.Println("Session end ingestion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to end session", "SESSION_END_FAILED", nil)
	}

	middleware.RecordTelemetryEvent("session_end")
	return h.SuccessResponse(c, fiber.StatusOK, "Session ended", dto.TelemetryAck{Recorded: true})
}

// SessionActivity handles the heartbeat event
// @Summary Record session activity
// @Description Move the session's last-active timestamp forward
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param request body dto.SessionActivityEvent true "Activity heartbeat"
// @Success 200 {object} dto.APIResponse{data=dto.TelemetryAck} "Heartbeat recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/analytics/session-activity [post]
func (h *TelemetryHandler) SessionActivity(c fiber.Ctx) error {
	var req dto.SessionActivityEvent
	if status, msg, code, details := h.bindEvent(c, &req); status != 0 {
		return h.ErrorResponse(c, status, msg, code, details)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	err := h.telemetryFlow.RecordActivity(createRequestContext(c, "/api/v1/analytics/session-activity"), &req, metadata)
	if err != nil {
		if businessflow.IsSessionNotFound(err) {
			return h.SuccessResponse(c, fiber.StatusOK, "Session no longer tracked", dto.TelemetryAck{Recorded: false})
		}

		log.Println("Session activity ingestion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record activity", "SESSION_ACTIVITY_FAILED", nil)
	}

	middleware.RecordTelemetryEvent("session_activity")
	return h.SuccessResponse(c, fiber.StatusOK, "Activity recorded", dto.TelemetryAck{Recorded: true})
}
