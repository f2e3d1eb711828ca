package server

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweetpotato0/wanderai/assistant"
	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/rag/webhook"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// DescriptionResponse is the body returned by the place description endpoint.
type DescriptionResponse struct {
	Place       string `json:"place"`
	Description string `json:"description"`
}

// WebhookResponse confirms an applied knowledge base update.
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	assistant *assistant.Assistant
	webhooks  *webhook.Manager
	metrics   http.Handler
}

// NewHandlers creates the handlers. hooks may be nil.
func NewHandlers(a *assistant.Assistant, hooks *webhook.Manager) *Handlers {
	return &Handlers{
		assistant: a,
		webhooks:  hooks,
		metrics:   promhttp.Handler(),
	}
}

// HandleChat processes one user message. The reply always comes back with
// 200; failures inside the pipeline are reported in the reply itself.
func (h *Handlers) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	ctx := middleware.WithClient(c.Request.Context(), c.ClientIP())
	c.JSON(http.StatusOK, h.assistant.ProcessMessage(ctx, req.Message, req.SessionID))
}

// HandleGetSession returns the transcript of a session.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	t, err := h.assistant.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// HandleDeleteSession forgets a session.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	if err := h.assistant.Reset(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleWebhook applies a signed knowledge base update.
func (h *Handlers) HandleWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "webhooks are not configured",
			Code:  "UNAVAILABLE",
		})
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body", Code: "INVALID_REQUEST"})
		return
	}
	msg, err := h.webhooks.Process(c.Request.Context(), raw, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{Status: "success", Message: msg})
}

// HandleWebhookStats reports the updates log statistics.
func (h *Handlers) HandleWebhookStats(c *gin.Context) {
	if h.webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "webhooks are not configured",
			Code:  "UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, h.webhooks.Stats())
}

// HandleDescribePlace writes a short grounded description of a place.
func (h *Handlers) HandleDescribePlace(c *gin.Context) {
	place := c.Param("name")
	text, err := h.assistant.Describe(c.Request.Context(), place)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DescriptionResponse{Place: place, Description: text})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  Version,
		"sessions": h.assistant.Sessions().Len(),
	})
}

// HandleMetrics exposes the Prometheus registry.
func (h *Handlers) HandleMetrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		msg = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

func statusFor(err error) (int, string) {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case stderrors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case stderrors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case stderrors.Is(err, errors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case stderrors.Is(err, errors.ErrGeneration), stderrors.Is(err, errors.ErrTimeout):
		return http.StatusBadGateway, "UPSTREAM_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
