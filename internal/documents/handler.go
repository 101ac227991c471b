package documents

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/offerflow/offerflow-backend/internal/auth"
	"github.com/offerflow/offerflow-backend/internal/users"
)

type Handler struct {
	service  Service
	wsSecret string
	logger   *zap.Logger
}

func NewHandler(service Service, wsSecret string, logger *zap.Logger) *Handler {
	return &Handler{service: service, wsSecret: wsSecret, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.GET("", h.List)
		docs.POST("", h.Create)
		docs.GET("/:id", h.Retrieve)
		docs.DELETE("/:id", h.Delete)
		docs.GET("/:id/history", h.History)
		docs.GET("/:id/to-user", h.ToUser)
		docs.GET("/:id/ws-token", h.WSToken)
		docs.GET("/:id/download-url", h.DownloadURL)
		docs.GET("/:id/update-url", h.UpdateURL)
		docs.POST("/:id/submit", h.Submit)
		docs.POST("/:id/share", h.Share)
		docs.POST("/:id/accept-invite", h.AcceptInvite)
		docs.POST("/:id/accept", h.Accept)
		docs.POST("/:id/decline", h.Decline)
		docs.POST("/:id/counter", h.Counter)
		docs.POST("/:id/request-review", h.RequestReview)
		docs.POST("/:id/create-review", h.CreateReview)
		docs.POST("/:id/sign", h.Sign)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var illegal *IllegalTransitionError
	var branch *StorageBranchError
	var validationErrs validation.Errors

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, ErrNoReviewerAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &illegal), errors.Is(err, ErrNotEditable):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoRecipient), errors.Is(err, ErrInvalidInvitation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErrs})
	case errors.As(err, &branch):
		h.logger.Error("storage branch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to copy document content"})
	default:
		h.logger.Error("document request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) actorAndID(c *gin.Context) (users.UserProfile, uuid.UUID, bool) {
	actor, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return users.UserProfile{}, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return users.UserProfile{}, uuid.Nil, false
	}
	return actor, id, true
}

// List returns the caller's negotiations grouped by lineage, most recently
// acted-on first.
func (h *Handler) List(c *gin.Context) {
	actor, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	histories, err := h.service.ListHistories(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, histories)
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detail, err := h.service.CreateDocument(c.Request.Context(), req, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) Retrieve(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	detail, err := h.service.GetDocument(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) History(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) ToUser(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	toUser, err := h.service.ToUser(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if toUser == nil {
		c.JSON(http.StatusOK, gin.H{"id": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": toUser.ID})
}

func (h *Handler) WSToken(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	// confirm access before minting the socket token
	if _, err := h.service.GetDocument(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}

	token, err := auth.IssueDocumentToken(h.wsSecret, actor.ID, id, time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) DownloadURL(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	url, err := h.service.DownloadURL(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) UpdateURL(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	contentType := ContentType(c.Query("content_type"))
	if contentType == "" {
		contentType = ContentJSON
	}

	url, err := h.service.UpdateURL(c.Request.Context(), id, actor, contentType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) Submit(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Submit(c.Request.Context(), id, actor, req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Share(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Share(c.Request.Context(), id, actor, req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) AcceptInvite(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AcceptInvite(c.Request.Context(), id, actor, req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Accept(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.Accept(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Decline(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.Decline(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Counter(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	branch, err := h.service.Counter(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": branch.ID})
}

func (h *Handler) RequestReview(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.RequestReview(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) CreateReview(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	branch, err := h.service.CreateReview(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": branch.ID})
}

func (h *Handler) Sign(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.Sign(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
