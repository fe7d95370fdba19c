// Package services provides external service integrations and technical concerns like signed handles and object storage
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docpulse/docpulse/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Handle service error constants
var (
	ErrHandleExpired = errors.New("document handle has expired")
	ErrHandleInvalid = errors.New("invalid document handle")
	ErrHandleRevoked = errors.New("document handle has been revoked")
)

// HandleService issues and validates short-lived signed document handles.
// A handle is minted once per successful access handshake and is the only
// credential the viewer holds; it never embeds the raw storage key.
type HandleService interface {
	IssueHandle(documentUUID, sessionUUID string) (handle string, expiresIn int, err error)
	ValidateHandle(handle string) (*HandleClaims, error)
	RevokeHandle(handle string) error
	IsHandleRevoked(handle string) bool
}

// HandleClaims represents the claims in a signed document handle
type HandleClaims struct {
	DocumentUUID string    `json:"document_uuid"`
	SessionUUID  string    `json:"session_uuid"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	HandleID     string    `json:"jti"`
}

// HandleServiceImpl implements HandleService
type HandleServiceImpl struct {
	handleTTL      time.Duration
	signingMethod  jwt.SigningMethod
	secretKey      []byte
	issuer         string
	audience       string
	mu             sync.RWMutex // Mutex for concurrent access to revokedHandles
	revokedHandles map[string]time.Time
}

// NewHandleService creates a new handle service
func NewHandleService(handleTTL time.Duration, issuer, audience, secretKey string) (HandleService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}

	return &HandleServiceImpl{
		handleTTL:      handleTTL,
		signingMethod:  jwt.SigningMethodHS256,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
		revokedHandles: make(map[string]time.Time),
	}, nil
}

// IssueHandle mints a signed handle bound to one document and one session
func (s *HandleServiceImpl) IssueHandle(documentUUID, sessionUUID string) (string, int, error) {
	now := utils.UTCNow()

	handleID, err := generateHandleID()
	if err != nil {
		return "", 0, err
	}

	claims := jwt.MapClaims{
		"document_uuid": documentUUID,
		"session_uuid":  sessionUUID,
		"jti":           handleID,
		"iat":           now.Unix(),
		"exp":           now.Add(s.handleTTL).Unix(),
		"iss":           s.issuer,
		"aud":           s.audience,
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", 0, err
	}

	return signed, int(s.handleTTL.Seconds()), nil
}

// ValidateHandle parses and verifies a handle, returning its claims
func (s *HandleServiceImpl) ValidateHandle(handle string) (*HandleClaims, error) {
	parsedToken, err := jwt.Parse(handle, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secretKey, nil
	})

	if err != nil {
		// Check if the error is due to token expiration
		if strings.Contains(err.Error(), "expired") || strings.Contains(err.Error(), "exp") {
			return nil, ErrHandleExpired
		}
		return nil, ErrHandleInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrHandleInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrHandleInvalid
	}

	documentUUID, ok := claims["document_uuid"].(string)
	if !ok {
		return nil, ErrHandleInvalid
	}

	sessionUUID, ok := claims["session_uuid"].(string)
	if !ok {
		return nil, ErrHandleInvalid
	}

	handleID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrHandleInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrHandleInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrHandleInvalid
	}

	if s.IsHandleRevoked(handleID) {
		return nil, ErrHandleRevoked
	}

	return &HandleClaims{
		DocumentUUID: documentUUID,
		SessionUUID:  sessionUUID,
		IssuedAt:     time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt:    time.Unix(int64(expiresAt), 0).UTC(),
		HandleID:     handleID,
	}, nil
}

// RevokeHandle marks a handle's jti as revoked until its natural expiry
func (s *HandleServiceImpl) RevokeHandle(handle string) error {
	claims, err := s.ValidateHandle(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokedHandles[claims.HandleID] = claims.ExpiresAt

	// Drop entries that expired on their own
	now := utils.UTCNow()
	for id, exp := range s.revokedHandles {
		if exp.Before(now) {
			delete(s.revokedHandles, id)
		}
	}

	return nil
}

// IsHandleRevoked checks whether a handle id has been revoked
func (s *HandleServiceImpl) IsHandleRevoked(handleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.revokedHandles[handleID]
	if !ok {
		return false
	}
	return exp.After(utils.UTCNow())
}

// generateHandleID generates a unique handle ID
func generateHandleID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
