package server

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the /v1 endpoints on rg.
//
//	POST   /v1/chat                          - process one message
//	GET    /v1/sessions/:id                  - session history and stats
//	DELETE /v1/sessions/:id                  - forget a session
//	POST   /v1/webhooks/kb                   - knowledge base update
//	GET    /v1/webhooks/kb/stats             - webhook statistics
//	GET    /v1/places/:name/description      - grounded place description
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/chat", h.HandleChat)

	sessions := rg.Group("/sessions")
	{
		sessions.GET("/:id", h.HandleGetSession)
		sessions.DELETE("/:id", h.HandleDeleteSession)
	}

	hooks := rg.Group("/webhooks/kb")
	{
		hooks.POST("", h.HandleWebhook)
		hooks.GET("/stats", h.HandleWebhookStats)
	}

	rg.GET("/places/:name/description", h.HandleDescribePlace)
}
