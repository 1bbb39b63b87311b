package calendar

import (
	"errors"
	"net/http"
	"strconv"

	"milltownabc/internal/api"
	"milltownabc/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrClassNotFound), errors.Is(err, ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrClassExists), errors.Is(err, ErrCapacityBelowBooked):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidDate):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return id, true
}

// @Summary      List upcoming classes
// @Description  Active classes from today through the public booking window, with availability.
// @Tags         classes
// @Produce      json
// @Success      200  {array}   calendar.ClassView
// @Failure      500  {object}  api.ErrorResponse
// @Router       /classes [get]
func (h *Handler) ListPublic(c *gin.Context) {
	classes, err := h.service.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch classes")
		return
	}

	c.JSON(http.StatusOK, classes)
}

// @Summary      Get a class
// @Tags         classes
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {object}  calendar.ClassView
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /classes/{classID} [get]
func (h *Handler) GetClass(c *gin.Context) {
	id, ok := pathID(c, "classID")
	if !ok {
		return
	}

	class, err := h.service.GetClass(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch class")
		return
	}

	c.JSON(http.StatusOK, class)
}

// @Summary      List all classes
// @Tags         admin,classes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   calendar.ClassView
// @Failure      401  {object}  api.ErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Router       /admin/classes [get]
func (h *Handler) ListAll(c *gin.Context) {
	classes, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch classes")
		return
	}

	c.JSON(http.StatusOK, classes)
}

// @Summary      Create a one-off class
// @Tags         admin,classes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      calendar.CreateClassRequest  true  "Class"
// @Success      201      {object}  calendar.ClassView
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/classes [post]
func (h *Handler) CreateClass(c *gin.Context) {
	var req CreateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.CreateClass(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create class")
		return
	}

	c.JSON(http.StatusCreated, class)
}

// @Summary      Update a class
// @Tags         admin,classes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        classID  path      int                          true  "Class ID"
// @Param        request  body      calendar.UpdateClassRequest  true  "Class"
// @Success      200      {object}  calendar.ClassView
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/classes/{classID} [put]
func (h *Handler) UpdateClass(c *gin.Context) {
	id, ok := pathID(c, "classID")
	if !ok {
		return
	}

	var req UpdateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.UpdateClass(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, "Failed to update class")
		return
	}

	c.JSON(http.StatusOK, class)
}

// @Summary      Delete a class
// @Description  Bookings for the class are removed with it.
// @Tags         admin,classes
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/classes/{classID} [delete]
func (h *Handler) DeleteClass(c *gin.Context) {
	id, ok := pathID(c, "classID")
	if !ok {
		return
	}

	if err := h.service.DeleteClass(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete class")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Class deleted"})
}

// @Summary      Generate the rolling schedule now
// @Tags         admin,classes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]int
// @Router       /admin/classes/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	created, err := h.service.EnsureSchedule(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to generate classes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}

// @Summary      List class templates
// @Tags         admin,templates
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  calendar.ClassTemplate
// @Router       /admin/templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.service.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch templates")
		return
	}

	c.JSON(http.StatusOK, templates)
}

// @Summary      Create a class template
// @Tags         admin,templates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      calendar.CreateTemplateRequest  true  "Template"
// @Success      201      {object}  calendar.ClassTemplate
// @Failure      400      {object}  api.ValidationErrorResponse
// @Router       /admin/templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	t, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create template")
		return
	}

	c.JSON(http.StatusCreated, t)
}

// @Summary      Delete a class template
// @Description  Already generated classes are kept.
// @Tags         admin,templates
// @Security     BearerAuth
// @Produce      json
// @Param        templateID  path      int  true  "Template ID"
// @Success      200         {object}  api.MessageResponse
// @Failure      404         {object}  api.ErrorResponse
// @Router       /admin/templates/{templateID} [delete]
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := pathID(c, "templateID")
	if !ok {
		return
	}

	if err := h.service.DeleteTemplate(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete template")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Template deleted"})
}
