package handlers

import (
	"net/http"

	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/middleware"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// DomainHandler exposes the business operations that raise notifications.
type DomainHandler struct {
	*BaseHandler
	projects services.ProjectService
	tasks    services.TaskService
	meetings services.MeetingService
	courses  services.CourseService
	invoices services.InvoiceService
	comments services.CommentService
}

func NewDomainHandler(base *BaseHandler, svc *services.ServiceContainer) *DomainHandler {
	return &DomainHandler{
		BaseHandler: base,
		projects:    svc.ProjectService,
		tasks:       svc.TaskService,
		meetings:    svc.MeetingService,
		courses:     svc.CourseService,
		invoices:    svc.InvoiceService,
		comments:    svc.CommentService,
	}
}

func (h *DomainHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := r.Group("")
	g.Use(authMW)
	{
		g.POST("/projects", h.CreateProject)
		g.PATCH("/projects/:id/status", h.ChangeProjectStatus)
		g.POST("/tasks/:id/assign", h.AssignTask)
		g.POST("/meetings", h.CreateMeeting)
		g.POST("/courses/:id/enroll", h.Enroll)
		g.PATCH("/invoices/:id/status", middleware.RequireStaff(), h.ChangeInvoiceStatus)
		g.POST("/comments", h.CreateComment)
	}
}

func (h *DomainHandler) CreateProject(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateProjectRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	project, err := h.projects.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *DomainHandler) ChangeProjectStatus(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ChangeProjectStatusRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}
	if !middleware.IsStaff(c) {
		member, err := h.projects.IsMember(c.Request.Context(), id, userID)
		if !h.requireMember(c, member, err, "Only project members can change its status") {
			return
		}
	}

	tr, err := h.projects.ChangeStatus(c.Request.Context(), userID, id, models.ProjectStatus(req.Status))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr.Response())
}

func (h *DomainHandler) AssignTask(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignTaskRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}
	if !middleware.IsStaff(c) {
		member, err := h.tasks.IsProjectMember(c.Request.Context(), id, userID)
		if !h.requireMember(c, member, err, "Only project members can assign its tasks") {
			return
		}
	}

	tr, err := h.tasks.Assign(c.Request.Context(), userID, id, req.AssigneeID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr.Response())
}

func (h *DomainHandler) CreateMeeting(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateMeetingRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	meeting, err := h.meetings.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, meeting)
}

func (h *DomainHandler) Enroll(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}

	enrollment, err := h.courses.Enroll(c.Request.Context(), id, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}

func (h *DomainHandler) ChangeInvoiceStatus(c *gin.Context) {
	if _, ok := h.GetAndAuthorizeUserID(c); !ok {
		return
	}
	id, ok := h.ParseParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ChangeInvoiceStatusRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	tr, err := h.invoices.ChangeStatus(c.Request.Context(), id, models.InvoiceStatus(req.Status))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr.Response())
}

func (h *DomainHandler) CreateComment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// requireMember answers 403 when the caller is not part of the resource.
func (h *DomainHandler) requireMember(c *gin.Context, member bool, err error, message string) bool {
	if err != nil {
		h.HandleServiceError(c, err)
		return false
	}
	if !member {
		logger.CtxWarn(c.Request.Context(), "Forbidden trigger call", "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewForbiddenError(message))
		return false
	}
	return true
}
