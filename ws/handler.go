package ws

import (
	"ecosystia_backend/internal/channels"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	Manager *WebSocketManager
}

func NewWebSocketHandler(manager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{Manager: manager}
}

// RegisterRoutes mounts the streams. Authentication happens after the
// upgrade, so these routes sit outside the auth middleware.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/notifications/:user_id", h.ServeUser)
	r.GET("/ws/projects/:project_id/notifications", h.ServeProject)
	r.GET("/ws/meetings/:meeting_id/chat", h.ServeMeeting)
	r.GET("/ws/system", h.ServeSystem)
}

func (h *WebSocketHandler) ServeUser(c *gin.Context) {
	h.Manager.serve(c.Writer, c.Request, StreamUser, channels.PerUser(c.Param("user_id")))
}

func (h *WebSocketHandler) ServeProject(c *gin.Context) {
	h.Manager.serve(c.Writer, c.Request, StreamProject, channels.PerProject(c.Param("project_id")))
}

func (h *WebSocketHandler) ServeMeeting(c *gin.Context) {
	h.Manager.serve(c.Writer, c.Request, StreamMeeting, channels.PerMeeting(c.Param("meeting_id")))
}

func (h *WebSocketHandler) ServeSystem(c *gin.Context) {
	h.Manager.serve(c.Writer, c.Request, StreamSystem, channels.System())
}
