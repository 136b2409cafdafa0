package handle

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskmate/internal/llm"
	"taskmate/internal/util"
)

// Upload accepts a multipart file plus a provider selector, runs the full
// pipeline and returns the stored record summary.
func (h *Handler) Upload(c *gin.Context) {
	provider, err := llm.ParseProvider(c.PostForm("llmProvider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported llmProvider", "success": false})
		return
	}
	if !provider.Wired() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "llmProvider " + string(provider) + " is not supported yet",
			"success": false,
		})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded", "success": false})
		return
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 10MB limit", "success": false})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload", "success": false})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil || int64(len(data)) > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload", "success": false})
		return
	}

	mediaType := fh.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = util.SniffMimeHTTP(data)
	}

	id := h.identity(c)
	if id.UserID == 0 && id.SessionID == "" {
		if sid := c.PostForm("sessionId"); sid != "" {
			id.SessionID = sid
		} else {
			id.SessionID = uuid.NewString()
		}
	}

	a, err := h.svc.ProcessFile(c.Request.Context(), id, provider, data, mediaType, fh.Filename)
	if err != nil {
		pipelineError(c, err)
		return
	}
	respondProcessed(c, a)
}
