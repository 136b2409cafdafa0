// Package handle exposes the HTTP surface over the solve pipeline and stores.
package handle

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskmate/internal/auth"
	"taskmate/internal/extract"
	"taskmate/internal/llm"
	"taskmate/internal/mail"
	"taskmate/internal/solve"
	"taskmate/internal/store"
)

type Handler struct {
	svc        *solve.Service
	store      store.AssignmentStore
	users      *store.UserRepo // nil on the file backend
	mailer     *mail.Mailer
	signingKey string
	maxUpload  int64
	db         *sql.DB // nil on the file backend; used by healthz
}

func New(svc *solve.Service, st store.AssignmentStore, users *store.UserRepo, mailer *mail.Mailer, signingKey string, maxUpload int64, db *sql.DB) *Handler {
	return &Handler{
		svc:        svc,
		store:      st,
		users:      users,
		mailer:     mailer,
		signingKey: signingKey,
		maxUpload:  maxUpload,
		db:         db,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/upload", h.Upload)
		api.POST("/process-text", h.ProcessText)
		api.GET("/assignments", h.ListAssignments)
		api.GET("/assignments/:id", h.GetAssignment)
		api.GET("/assignments/:id/render", h.RenderAssignment)
		api.POST("/assignments/:id/email", h.EmailAssignment)
		api.DELETE("/assignments/cleanup", h.CleanupAssignments)

		api.POST("/auth/register", h.RegisterUser)
		api.POST("/auth/login", h.Login)
		api.GET("/users/me", h.Me)
		api.POST("/payments/confirm", h.ConfirmPayment)
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db: not ok\n%s", err.Error())
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

// identity resolves the request owner: a valid Bearer token wins, otherwise
// the anonymous session id header, otherwise nothing.
func (h *Handler) identity(c *gin.Context) solve.Identity {
	var id solve.Identity
	if ah := c.GetHeader("Authorization"); strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		token := strings.TrimSpace(ah[len("bearer "):])
		if claims, err := auth.ValidateToken(token, h.signingKey); err == nil {
			id.UserID = claims.UserID
		} else {
			logrus.WithError(err).Debug("ignoring invalid bearer token")
		}
	}
	id.SessionID = c.GetHeader("X-Session-ID")
	return id
}

type processResponse struct {
	ID             int64  `json:"id"`
	ExtractedText  string `json:"extractedText"`
	LLMResponse    string `json:"llmResponse"`
	ProcessingTime int64  `json:"processingTime"`
	Success        bool   `json:"success"`
}

func respondProcessed(c *gin.Context, a *store.Assignment) {
	c.JSON(http.StatusOK, processResponse{
		ID:             a.ID,
		ExtractedText:  a.ExtractedText,
		LLMResponse:    a.Response,
		ProcessingTime: a.ProcessingMS,
		Success:        true,
	})
}

// pipelineError maps stage failures onto the error taxonomy: validation-class
// failures are 400, everything else a generic 500. Nothing is retried.
func pipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrEmptyExtraction),
		errors.Is(err, llm.ErrUnknownProvider),
		errors.Is(err, llm.ErrNotWired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "success": false})
	default:
		logrus.WithError(err).Error("request pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "success": false})
	}
}
