package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

const (
	// TokenKindUser marks tokens issued to staff sessions.
	TokenKindUser = "user"
	// TokenKindAgent marks bearer credentials issued to print agents.
	TokenKindAgent = "agent"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. Agent tokens
// reuse the same shape with Kind set to "agent" and the agent id as UserID.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role,omitempty"`
	Kind   string         `json:"kind"`
	HostID string         `json:"host_id,omitempty"`
	jwt.RegisteredClaims
}
