package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/docpulse/docpulse/app/dto"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/docpulse/docpulse/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// StatsHandlerInterface defines the contract for analytics read handlers
type StatsHandlerInterface interface {
	DocumentStats(c fiber.Ctx) error
	ListSessions(c fiber.Ctx) error
	SessionDetail(c fiber.Ctx) error
	ExportSessions(c fiber.Ctx) error
	GlobalStats(c fiber.Ctx) error
	GenerateSummary(c fiber.Ctx) error
}

// StatsHandler serves the owner-facing analytics reads
type StatsHandler struct {
	statsFlow   businessflow.StatsFlow
	summaryFlow businessflow.SummaryFlow
	validator   *validator.Validate
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow, summaryFlow businessflow.SummaryFlow) *StatsHandler {
	return &StatsHandler{
		statsFlow:   statsFlow,
		summaryFlow: summaryFlow,
		validator:   validator.New(),
	}
}

func (h *StatsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *StatsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// DocumentStats returns the compact per-document dashboard read
// @Summary Document statistics
// @Tags Analytics
// @Produce json
// @Param token path string true "Share link token"
// @Success 200 {object} dto.APIResponse{data=dto.DocumentStatsResponse}
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/analytics/document/{token}/stats [get]
func (h *StatsHandler) DocumentStats(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Share token is required", "INVALID_TOKEN", nil)
	}

	result, err := h.statsFlow.DocumentStats(createRequestContext(c, "/api/v1/analytics/document/:token/stats"), token)
	if err != nil {
		if businessflow.IsShareLinkNotFound(err) || businessflow.IsDocumentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Share link not found", "SHARE_LINK_NOT_FOUND", nil)
		}

		log.Println("Document stats read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read document stats", "STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Document stats retrieved", result)
}

// ListSessions returns the paginated session listing for a share link
// @Summary List view sessions
// @Tags Analytics
// @Produce json
// @Param token path string true "Share link token"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Param email query string false "Filter by viewer email"
// @Param device query string false "Filter by device class"
// @Param country query string false "Filter by country code"
// @Param start_date query string false "Filter sessions started on or after this day (YYYY-MM-DD)"
// @Param end_date query string false "Filter sessions started on or before this day (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.SessionListResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/analytics/document/{token}/sessions [get]
func (h *StatsHandler) ListSessions(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Share token is required", "INVALID_TOKEN", nil)
	}

	req, ok, errResp := h.bindListRequest(c)
	if !ok {
		return errResp
	}

	result, err := h.statsFlow.ListSessions(createRequestContext(c, "/api/v1/analytics/document/:token/sessions"), token, req)
	if err != nil {
		return h.listError(c, err, "Failed to list sessions", "SESSION_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Sessions retrieved", result)
}

// SessionDetail returns one session with its page-by-page trail
// @Summary Session detail
// @Tags Analytics
// @Produce json
// @Param token path string true "Share link token"
// @Param session_id path string true "Session UUID"
// @Success 200 {object} dto.APIResponse{data=dto.SessionDTO}
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Router /api/v1/analytics/document/{token}/sessions/{session_id} [get]
func (h *StatsHandler) SessionDetail(c fiber.Ctx) error {
	token := c.Params("token")
	sessionID := c.Params("session_id")
	if token == "" || sessionID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Share token and session id are required", "INVALID_REQUEST", nil)
	}

	result, err := h.statsFlow.SessionDetail(createRequestContext(c, "/api/v1/analytics/document/:token/sessions/:session_id"), token, sessionID)
	if err != nil {
		if businessflow.IsSessionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", nil)
		}
		return h.listError(c, err, "Failed to read session", "SESSION_DETAIL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session retrieved", result)
}

// ExportSessions streams the filtered session listing as an xlsx workbook
// @Summary Export view sessions
// @Tags Analytics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param token path string true "Share link token"
// @Success 200 {string} string "Excel file"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/analytics/document/{token}/sessions/export [get]
func (h *StatsHandler) ExportSessions(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Share token is required", "INVALID_TOKEN", nil)
	}

	req, ok, errResp := h.bindListRequest(c)
	if !ok {
		return errResp
	}

	filename, data, err := h.statsFlow.ExportSessions(createRequestContextWithTimeout(c, "/api/v1/analytics/document/:token/sessions/export", 2*time.Minute), token, req)
	if err != nil {
		return h.listError(c, err, "Failed to export sessions", "SESSION_EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GlobalStats returns the platform-wide aggregate counters
// @Summary Global statistics
// @Tags Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GlobalStatsResponse}
// @Router /api/v1/analytics/global [get]
func (h *StatsHandler) GlobalStats(c fiber.Ctx) error {
	result, err := h.statsFlow.GlobalStats(createRequestContext(c, "/api/v1/analytics/global"))
	if err != nil {
		log.Println("Global stats read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read global stats", "GLOBAL_STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Global stats retrieved", result)
}

// GenerateSummary triggers a daily summary recomputation for one day
// @Summary Recompute daily summaries
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body dto.GenerateSummaryRequest true "Day to recompute"
// @Success 200 {object} dto.APIResponse{data=dto.GenerateSummaryResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Document not found"
// @Router /api/v1/analytics/summaries/generate [post]
func (h *StatsHandler) GenerateSummary(c fiber.Ctx) error {
	var req dto.GenerateSummaryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	day, err := time.Parse(utils.DateLayout, req.Date)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "VALIDATION_ERROR", err.Error())
	}

	ctx := createRequestContextWithTimeout(c, "/api/v1/analytics/summaries/generate", 2*time.Minute)

	if req.DocumentID != nil {
		summary, err := h.summaryFlow.GenerateForDocument(ctx, day, *req.DocumentID)
		if err != nil {
			if businessflow.IsDocumentNotFound(err) {
				return h.ErrorResponse(c, fiber.StatusNotFound, "Document not found", "DOCUMENT_NOT_FOUND", nil)
			}
			log.Println("Summary generation failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate summaries", "SUMMARY_GENERATION_FAILED", nil)
		}
		resp := dto.GenerateSummaryResponse{Date: req.Date}
		if summary != nil {
			resp.Documents = 1
			s := businessflow.ToDailySummaryDTO(*summary)
			resp.Summary = &s
		}
		return h.SuccessResponse(c, fiber.StatusOK, "Summaries generated", resp)
	}

	count, err := h.summaryFlow.GenerateDailySummaries(ctx, day, nil)
	if err != nil {
		log.Println("Summary generation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate summaries", "SUMMARY_GENERATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Summaries generated", dto.GenerateSummaryResponse{
		Date:      req.Date,
		Documents: count,
	})
}

// bindListRequest parses the listing query params; on failure it writes the
// error response itself and reports false
func (h *StatsHandler) bindListRequest(c fiber.Ctx) (*dto.SessionListRequest, bool, error) {
	req := &dto.SessionListRequest{
		Email:     c.Query("email"),
		Device:    c.Query("device"),
		Country:   c.Query("country"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page", "VALIDATION_ERROR", nil)
		}
		req.Page = page
	}
	if sizeStr := c.Query("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page size", "VALIDATION_ERROR", nil)
		}
		req.PageSize = size
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return req, true, nil
}

func (h *StatsHandler) listError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsShareLinkNotFound(err) || businessflow.IsDocumentNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Share link not found", "SHARE_LINK_NOT_FOUND", nil)
	}
	if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) || businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}
