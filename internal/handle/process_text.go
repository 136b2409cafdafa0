package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskmate/internal/llm"
)

type processTextRequest struct {
	InputText   string `json:"inputText" binding:"required"`
	LLMProvider string `json:"llmProvider" binding:"required,oneof=openai anthropic gemini deepseek grok"`
	SessionID   string `json:"sessionId"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ProcessText accepts typed problem text, validated against the request
// schema, and runs the dispatch → persist pipeline.
func (h *Handler) ProcessText(c *gin.Context) {
	var req processTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]fieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": details, "success": false})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "success": false})
		return
	}
	if strings.TrimSpace(req.InputText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inputText must not be empty", "success": false})
		return
	}

	provider := llm.Provider(req.LLMProvider)
	if !provider.Wired() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "llmProvider " + req.LLMProvider + " is not supported yet",
			"success": false,
		})
		return
	}

	id := h.identity(c)
	if id.UserID == 0 && id.SessionID == "" {
		if req.SessionID != "" {
			id.SessionID = req.SessionID
		} else {
			id.SessionID = uuid.NewString()
		}
	}

	a, err := h.svc.ProcessText(c.Request.Context(), id, provider, req.InputText)
	if err != nil {
		pipelineError(c, err)
		return
	}
	respondProcessed(c, a)
}
