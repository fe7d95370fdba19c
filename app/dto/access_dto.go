package dto

// AccessRequest is the body of the share link access handshake.
// Password is required only when the link has one; Email (and optionally
// Name) are required only for email-gated links.
type AccessRequest struct {
	Password string `json:"password,omitempty" validate:"omitempty,max=128"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// DocumentManifestResponse is the viewer-facing document metadata returned
// against a valid document handle
type DocumentManifestResponse struct {
	DocumentUUID string `json:"document_uuid"`
	Title        string `json:"title"`
	NumPages     int    `json:"num_pages"`
}

// AccessResponse is returned on a successful access handshake
type AccessResponse struct {
	SessionID      string `json:"session_id"`
	DocumentHandle string `json:"document_handle"`
	DocumentUUID   string `json:"document_uuid"`
	IsUnique       bool   `json:"is_unique"`
	ExpiresIn      int    `json:"expires_in"` // handle lifetime in seconds
}
