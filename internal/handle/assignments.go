package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskmate/internal/render"
	"taskmate/internal/store"
)

func (h *Handler) GetAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	a, err := h.store.Get(c.Request.Context(), id, h.identity(c).UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("assignment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAssignments(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		logrus.WithError(err).Error("assignment listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}
	if list == nil {
		list = []store.Assignment{}
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

// RenderAssignment serves the stored solution as a standalone HTML page with
// charts drawn server-side, usable for print and export.
func (h *Handler) RenderAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	a, err := h.store.Get(c.Request.Context(), id, h.identity(c).UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("assignment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}

	html := render.SolutionHTML("Solution #"+c.Param("id"), a.Response)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

type emailRequest struct {
	To string `json:"to" binding:"required,email"`
}

// EmailAssignment mails the rendered solution to the given address.
func (h *Handler) EmailAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid recipient address is required"})
		return
	}

	a, err := h.store.Get(c.Request.Context(), id, h.identity(c).UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("assignment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}

	html := render.SolutionHTML("Solution #"+c.Param("id"), a.Response)
	if err := h.mailer.SendSolution(req.To, "Your solution", html); err != nil {
		logrus.WithError(err).Error("solution email failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CleanupAssignments deletes records without a source file name, the only
// supported deletion path.
func (h *Handler) CleanupAssignments(c *gin.Context) {
	purged, err := h.store.PurgeTextEntries(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		logrus.WithError(err).Error("assignment cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
