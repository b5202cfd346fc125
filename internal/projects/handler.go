package projects

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/internal/reports/export"
	"buildflow/project-portal/project-portal-backend/internal/schema"
)

const (
	sessionKey    = "sid"
	sessionCtxKey = "workflow_session"
)

// Handler exposes the workflow service over HTTP
type Handler struct {
	service        *Service
	exporter       export.Exporter
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates the workflow HTTP handler
func NewHandler(service *Service, exporter export.Exporter, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		service:        service,
		exporter:       exporter,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the workflow routes; the group must carry the sessions middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.withSession)

	session := rg.Group("/session")
	{
		session.GET("", h.GetSession)
		session.PUT("/role", h.ChangeRole)
		session.DELETE("/edit", h.CloseEdit)
		session.DELETE("/edit/attachments/:field", h.RemoveAttachment)
		session.POST("/edit/submit", h.Submit)
		session.POST("/pending/confirm", h.Confirm)
		session.DELETE("/pending", h.Cancel)
	}

	projects := rg.Group("/projects")
	{
		projects.GET("", h.List)
		projects.GET("/search", h.Search)
		projects.DELETE("/search", h.ClearSearch)
		projects.GET("/export", h.Export)
		projects.POST("/new", h.OpenNew)
		projects.POST("/:id/open", h.Open)
		projects.DELETE("/:id", h.Delete)
	}

	rg.GET("/reference", h.Reference)
}

// withSession binds the cookie session to a workflow session
func (h *Handler) withSession(c *gin.Context) {
	cookie := sessions.Default(c)
	id, _ := cookie.Get(sessionKey).(string)

	sess := h.service.StartSession(id)
	if sess.ID != id {
		cookie.Set(sessionKey, sess.ID)
		if err := cookie.Save(); err != nil {
			h.logger.Error("Failed to save session cookie", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
	}

	c.Set(sessionCtxKey, sess)
	c.Next()
}

func currentSession(c *gin.Context) *Session {
	return c.MustGet(sessionCtxKey).(*Session)
}

type sessionResponse struct {
	ID         string      `json:"id"`
	Role       schema.Role `json:"role"`
	SearchTerm string      `json:"search_term,omitempty"`
	Editing    *Project    `json:"editing,omitempty"`
	Pending    *Pending    `json:"pending,omitempty"`
}

func (h *Handler) GetSession(c *gin.Context) {
	sess := currentSession(c)
	sess.mu.Lock()
	resp := sessionResponse{
		ID:         sess.ID,
		Role:       sess.Role,
		SearchTerm: sess.SearchTerm,
		Editing:    sess.Editing,
		Pending:    sess.Pending,
	}
	sess.mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) ChangeRole(c *gin.Context) {
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := schema.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown role %q", req.Role)})
		return
	}

	view, err := h.service.ChangeRole(c.Request.Context(), currentSession(c), role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) List(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Search(c *gin.Context) {
	view, err := h.service.Search(c.Request.Context(), currentSession(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ClearSearch(c *gin.Context) {
	view, err := h.service.ClearSearch(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) OpenNew(c *gin.Context) {
	var req passwordRequest
	// the body is optional for roles that need no password
	_ = c.ShouldBindJSON(&req)

	form, err := h.service.OpenNew(c.Request.Context(), currentSession(c), req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *Handler) Open(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	form, err := h.service.Open(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *Handler) CloseEdit(c *gin.Context) {
	h.service.CloseEdit(currentSession(c))
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveAttachment(c *gin.Context) {
	form, err := h.service.RemoveAttachment(c.Request.Context(), currentSession(c), c.Param("field"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

type submitRequest struct {
	Action string         `json:"action"`
	Values map[string]any `json:"values"`
}

// Submit accepts either a JSON body or a multipart form whose file parts
// are the uploads. Upload bodies are buffered so a confirmation can use them later.
func (h *Handler) Submit(c *gin.Context) {
	var (
		req     submitRequest
		uploads map[string]Upload
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid form: %v", err)})
			return
		}
		req.Values = make(map[string]any, len(form.Value))
		for name, vals := range form.Value {
			if name == "action" {
				req.Action = vals[0]
				continue
			}
			if len(vals) > 0 {
				req.Values[name] = vals[0]
			}
		}
		uploads, err = bufferUploads(form.File)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid body: %v", err)})
			return
		}
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown action %q", req.Action)})
		return
	}

	out, err := h.service.Submit(c.Request.Context(), currentSession(c), action, req.Values, uploads)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if out.Result.NeedsConfirmation() {
		c.JSON(http.StatusAccepted, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Confirm(c *gin.Context) {
	var req confirmRequest
	_ = c.ShouldBindJSON(&req)

	out, err := h.service.Confirm(c.Request.Context(), currentSession(c), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(currentSession(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var req passwordRequest
	_ = c.ShouldBindJSON(&req)

	pending, err := h.service.Delete(c.Request.Context(), currentSession(c), id, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": pending})
}

func (h *Handler) Reference(c *gin.Context) {
	ref, err := h.service.Reference(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

// Export downloads the project register; ?format=xlsx|csv|pdf
func (h *Handler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	views, err := h.service.Register(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, format, RegisterTable(views)); err != nil {
		h.logger.Error("Failed to export project register", zap.String("format", string(format)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	name := fmt.Sprintf("projects-%s.%s", time.Now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// respondError maps the workflow error taxonomy onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		vErr *ValidationError
		pErr *PermissionError
		uErr *UploadError
		rErr *RepositoryError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field, "rule": vErr.Rule})
	case errors.Is(err, ErrProjectClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &pErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoPendingAction), errors.Is(err, ErrNoEditSession):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &uErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "field": uErr.Field})
	case errors.As(err, &rErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Unhandled workflow error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return 0, false
	}
	return id, true
}

// bufferUploads reads each file part into memory. Only the first file of a
// field is used.
func bufferUploads(files map[string][]*multipart.FileHeader) (map[string]Upload, error) {
	uploads := make(map[string]Upload, len(files))
	for name, headers := range files {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		uploads[name] = Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        bytes.NewReader(data),
		}
	}
	return uploads, nil
}
