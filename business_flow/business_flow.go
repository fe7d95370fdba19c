// Package businessflow contains the core business logic and use cases for the telemetry pipeline
package businessflow

import (
	"context"
	"time"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/utils"
)

// ClientMetadata holds viewer-related information captured at the edge for
// fingerprinting, audit logging, and session dimension columns
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer,omitempty"`
	Country   string `json:"country,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

func (cm *ClientMetadata) SetReferer(referer string) {
	cm.Referer = referer
}

func (cm *ClientMetadata) SetCountry(country string) {
	cm.Country = country
}

func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// IPHash returns the normalized fingerprint of the client address.
// Empty addresses still hash to a stable value so uniqueness checks never
// compare raw IPs.
func (cm *ClientMetadata) IPHash() string {
	return utils.HashIP(cm.IPAddress)
}

func requestIDFromContext(ctx context.Context) *string {
	requestID := ctx.Value(utils.RequestIDKey)
	if requestID == nil {
		return nil
	}
	requestIDStr, ok := requestID.(string)
	if !ok || requestIDStr == "" {
		return nil
	}
	return &requestIDStr
}

// ToSessionDTO converts a view session model to its API representation
func ToSessionDTO(session models.ViewSession) dto.SessionDTO {
	d := dto.SessionDTO{
		SessionID:       session.UUID.String(),
		ViewerEmail:     session.ViewerEmail,
		ViewerName:      session.ViewerName,
		Country:         session.Country,
		Device:          session.Device,
		Browser:         session.Browser,
		OS:              session.OS,
		Referer:         session.Referer,
		StartedAt:       session.StartedAt.UTC().Format(time.RFC3339),
		LastActiveAt:    session.LastActiveAt.UTC().Format(time.RFC3339),
		TotalDurationMS: session.TotalDurationMS,
		PagesViewed:     session.PagesViewed,
		MaxPageReached:  session.MaxPageReached,
		IsUnique:        utils.IsTrue(session.IsUnique),
		IsActive:        utils.IsTrue(session.IsActive),
	}
	return d
}

// ToPageViewDTO converts a page view model to its API representation
func ToPageViewDTO(pv models.PageView) dto.PageViewDTO {
	return dto.PageViewDTO{
		PageNumber:  pv.PageNumber,
		TotalPages:  pv.TotalPages,
		DurationMS:  pv.DurationMS,
		ScrollDepth: pv.ScrollDepth,
		ViewedAt:    pv.ViewedAt.UTC().Format(time.RFC3339),
	}
}

// ToDailySummaryDTO converts a daily summary model to its API representation
func ToDailySummaryDTO(s models.DailySummary) dto.DailySummaryDTO {
	return dto.DailySummaryDTO{
		Date:            s.SummaryDate.Format(utils.DateLayout),
		TotalViews:      s.TotalViews,
		UniqueViews:     s.UniqueViews,
		TotalDurationMS: s.TotalDurationMS,
		AvgDurationMS:   s.AvgDurationMS,
		EmailCaptures:   s.EmailCaptures,
	}
}
