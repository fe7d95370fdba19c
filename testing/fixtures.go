// Package testing provides test utilities and database setup for testing the analytics pipeline
package testing

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateTestDocument creates a test document with a random storage key
func (tf *TestFixtures) CreateTestDocument(ownerID *uint) (*models.Document, error) {
	id := uuid.New()
	doc := &models.Document{
		UUID:       id,
		OwnerID:    ownerID,
		Title:      fmt.Sprintf("Test Document %d", rand.Intn(100000)),
		StorageKey: fmt.Sprintf("documents/%s.pdf", id),
		NumPages:   10,
	}

	if err := tf.DB.DB.Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create test document: %w", err)
	}

	return doc, nil
}

// ShareLinkOption mutates a share link fixture before it is saved
type ShareLinkOption func(*models.ShareLink)

// WithPassword protects the link with the given plaintext password
func WithPassword(password string) ShareLinkOption {
	return func(link *models.ShareLink) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		link.PasswordHash = utils.ToPtr(string(hash))
	}
}

// WithExpiry sets the link expiration time
func WithExpiry(at time.Time) ShareLinkOption {
	return func(link *models.ShareLink) {
		link.ExpiresAt = &at
	}
}

// WithMaxViews caps the link's total views
func WithMaxViews(n int) ShareLinkOption {
	return func(link *models.ShareLink) {
		link.MaxViews = &n
	}
}

// WithEmailGate requires viewers to supply an email
func WithEmailGate() ShareLinkOption {
	return func(link *models.ShareLink) {
		link.EmailGated = utils.ToPtr(true)
	}
}

// Disabled deactivates the link
func Disabled() ShareLinkOption {
	return func(link *models.ShareLink) {
		link.IsActive = utils.ToPtr(false)
	}
}

// CreateTestShareLink creates a share link for the document with the given policy options
func (tf *TestFixtures) CreateTestShareLink(documentID uint, opts ...ShareLinkOption) (*models.ShareLink, error) {
	token, err := GenerateSecureToken(12)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share token: %w", err)
	}

	link := &models.ShareLink{
		Token:      token,
		DocumentID: documentID,
		EmailGated: utils.ToPtr(false),
		IsActive:   utils.ToPtr(true),
	}
	for _, opt := range opts {
		opt(link)
	}

	if err := tf.DB.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test share link: %w", err)
	}

	return link, nil
}

// CreateTestSession creates an active view session against the given share link
func (tf *TestFixtures) CreateTestSession(link *models.ShareLink, opts ...func(*models.ViewSession)) (*models.ViewSession, error) {
	now := time.Now().UTC()
	session := &models.ViewSession{
		UUID:              uuid.New(),
		ShareLinkID:       link.ID,
		DocumentID:        link.DocumentID,
		IPHash:            utils.HashIP(fmt.Sprintf("10.0.%d.%d", rand.Intn(256), rand.Intn(256))),
		Device:            "desktop",
		Browser:           "chrome",
		OS:                "linux",
		StartedAt:         now,
		LastActiveAt:      now,
		IsUnique:          utils.ToPtr(true),
		IsActive:          utils.ToPtr(true),
		DataRetentionDate: now.Add(utils.SessionRetention),
	}
	for _, opt := range opts {
		opt(session)
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestPageView appends a page view row to the session
func (tf *TestFixtures) CreateTestPageView(sessionID uint, pageNumber, totalPages int, durationMS int64) (*models.PageView, error) {
	pv := &models.PageView{
		SessionID:  sessionID,
		PageNumber: pageNumber,
		TotalPages: totalPages,
		DurationMS: durationMS,
		ViewedAt:   time.Now().UTC(),
	}

	if err := tf.DB.DB.Create(pv).Error; err != nil {
		return nil, fmt.Errorf("failed to create test page view: %w", err)
	}

	return pv, nil
}

// CreateTestEmailCapture records a captured viewer email against the link
func (tf *TestFixtures) CreateTestEmailCapture(link *models.ShareLink, email string) (*models.EmailCapture, error) {
	capture := &models.EmailCapture{
		ShareLinkID: link.ID,
		DocumentID:  link.DocumentID,
		Email:       utils.NormalizeEmail(email),
		CapturedAt:  time.Now().UTC(),
	}

	if err := tf.DB.DB.Create(capture).Error; err != nil {
		return nil, fmt.Errorf("failed to create test email capture: %w", err)
	}

	return capture, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(documentID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipHash := utils.HashIP("127.0.0.1")
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		DocumentID:  documentID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPHash:      &ipHash,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// CreateSharedDocument creates a document with one open share link, the most
// common starting point for pipeline tests
func (tf *TestFixtures) CreateSharedDocument() (*models.Document, *models.ShareLink, error) {
	doc, err := tf.CreateTestDocument(nil)
	if err != nil {
		return nil, nil, err
	}
	link, err := tf.CreateTestShareLink(doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, link, nil
}
