package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskmate/internal/auth"
	"taskmate/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) requireUsers(c *gin.Context) bool {
	if h.users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "accounts require the postgres backend"})
		return false
	}
	return true
}

func (h *Handler) RegisterUser(c *gin.Context) {
	if !h.requireUsers(c) {
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username (min 3) and password (min 8) are required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		return
	}
	u, err := h.users.Create(c.Request.Context(), strings.ToLower(req.Username), hash)
	if err != nil {
		// unique violation and everything else read the same to the caller
		logrus.WithError(err).Warn("user registration failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is taken"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": u.ID, "username": u.Username})
}

func (h *Handler) Login(c *gin.Context) {
	if !h.requireUsers(c) {
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	u, err := h.users.GetByUsername(c.Request.Context(), strings.ToLower(req.Username))
	if err != nil || !auth.CheckPasswordHash(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := auth.GenerateToken(u.ID, h.signingKey)
	if err != nil {
		logrus.WithError(err).Error("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Me(c *gin.Context) {
	if !h.requireUsers(c) {
		return
	}
	id := h.identity(c)
	if id.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, u)
}

type paymentConfirmRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Tokens  int64  `json:"tokens" binding:"required,gt=0"`
}

// ConfirmPayment credits tokens after the payment provider reports a captured
// order. The capture itself happens in the payment button flow; this endpoint
// only applies the balance change.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	if !h.requireUsers(c) {
		return
	}
	id := h.identity(c)
	if id.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req paymentConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId and a positive token amount are required"})
		return
	}

	if err := h.users.CreditTokens(c.Request.Context(), id.UserID, req.Tokens); err != nil {
		logrus.WithError(err).Error("token credit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to credit tokens"})
		return
	}
	logrus.WithFields(logrus.Fields{"user": id.UserID, "order": req.OrderID, "tokens": req.Tokens}).
		Info("payment confirmed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
