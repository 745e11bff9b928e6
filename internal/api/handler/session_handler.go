package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/perpsim/internal/api/middleware"
	"github.com/evetabi/perpsim/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionHandler issues session tokens for the demo account.  There are no
// credentials: anyone may start a session, and every session drives the same
// single account.
type SessionHandler struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionHandler creates a SessionHandler from the JWT configuration.
func NewSessionHandler(cfg config.JWTConfig) *SessionHandler {
	return &SessionHandler{
		secret: []byte(cfg.Secret),
		ttl:    cfg.SessionTTL,
	}
}

// Create godoc
// POST /api/session
// Issues a signed session token.  The subject is a fresh session id so
// individual sessions remain distinguishable in logs.
func (h *SessionHandler) Create(c *gin.Context) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		Issuer:    "perpsim",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not issue session token")
		return
	}

	respondSuccess(c, http.StatusCreated, gin.H{
		"token":      signed,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// Me godoc
// GET /api/session [session]
// Echoes the authenticated session's subject so clients can verify their
// token is still accepted.
func (h *SessionHandler) Me(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"subject": middleware.GetSubject(c),
	})
}
