package attachments

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler streams stored attachments. Locators of a private bucket point here.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RoutePath is where attachments are served below the API group
const RoutePath = "/attachments"

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(RoutePath+"/:project/:file", h.Download)
}

func (h *Handler) Download(c *gin.Context) {
	project, file := c.Param("project"), c.Param("file")

	body, err := h.store.Open(c.Request.Context(), project, file)
	if err != nil {
		h.logger.Warn("Attachment download failed",
			zap.String("project", project),
			zap.String("file", file),
			zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	defer body.Close()

	c.Header("Content-Type", ContentType(file, ""))
	c.Header("Content-Disposition", "inline; filename=\""+Sanitize(file)+"\"")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.logger.Warn("Attachment stream interrupted", zap.String("file", file), zap.Error(err))
	}
}
