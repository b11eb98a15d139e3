package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AuthHandler issues admin tokens.
type AuthHandler struct {
	admin config.AdminConfig
	jwt   config.JWTConfig
	now   func() time.Time
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(admin config.AdminConfig, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{admin: admin, jwt: jwtCfg, now: time.Now}
}

// loginRequest captures admin credentials.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if errCheck := security.CheckAdminCredentials(h.admin.Username, h.admin.PasswordHash, username, body.Password); errCheck != nil {
		if !errors.Is(errCheck, security.ErrInvalidCredentials) {
			log.WithError(errCheck).Warn("admin: credential check failed")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	now := h.now()
	token, errIssue := security.IssueAdminToken(h.jwt.Secret, username, h.jwt.Expiry, now)
	if errIssue != nil {
		log.WithError(errIssue).Error("admin: issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": now.Add(h.jwt.Expiry).UTC(),
	})
}
