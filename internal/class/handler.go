package class

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wodbox/internal/api"
	"wodbox/internal/datastore"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListClasses serves GET /classes?box_id=...&date=... . With a date it
// returns that day's classes by start time, otherwise the box's full
// schedule.
func (h *Handler) ListClasses(c *gin.Context) {
	if date := c.Query("date"); date != "" {
		classes, err := h.service.GetClassesByDate(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch classes"})
			return
		}
		c.JSON(http.StatusOK, classes)
		return
	}

	boxID := c.Query("box_id")
	if boxID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "box_id or date is required"})
		return
	}

	classes, err := h.service.GetClassesByBox(c.Request.Context(), boxID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch classes"})
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *Handler) ListAvailable(c *gin.Context) {
	boxID := c.Query("box_id")
	if boxID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "box_id is required"})
		return
	}

	classes, err := h.service.GetAvailableClasses(c.Request.Context(), boxID, datastore.Date(c.Query("from")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch available classes"})
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *Handler) GetClass(c *gin.Context) {
	class, err := h.service.GetClassByID(c.Request.Context(), c.Param("classID"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch class")
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	classID := c.Param("classID")
	available, err := h.service.CheckAvailability(c.Request.Context(), classID)
	if err != nil {
		h.writeError(c, err, "Failed to check availability")
		return
	}
	c.JSON(http.StatusOK, api.AvailabilityResponse{ClassID: classID, Available: available})
}

type createClassPayload struct {
	BoxID string `json:"box_id" binding:"required"`
	CreateClassRequest
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req createClassPayload
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.CreateClass(c.Request.Context(), req.BoxID, req.CreateClassRequest)
	if err != nil {
		h.writeError(c, err, "Failed to create class")
		return
	}
	c.JSON(http.StatusCreated, class)
}

func (h *Handler) UpdateClass(c *gin.Context) {
	var req UpdateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.UpdateClass(c.Request.Context(), c.Param("classID"), req)
	if err != nil {
		h.writeError(c, err, "Failed to update class")
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *Handler) CancelClass(c *gin.Context) {
	var req CancelClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.CancelClass(c.Request.Context(), c.Param("classID"), req.Reason)
	if err != nil {
		h.writeError(c, err, "Failed to cancel class")
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *Handler) DeleteClass(c *gin.Context) {
	if err := h.service.DeleteClass(c.Request.Context(), c.Param("classID")); err != nil {
		h.writeError(c, err, "Failed to delete class")
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Class deleted"})
}

func (h *Handler) ListWodTypes(c *gin.Context) {
	boxID := c.Query("box_id")
	if boxID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "box_id is required"})
		return
	}

	types, err := h.service.ListWodTypes(c.Request.Context(), boxID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch WOD types"})
		return
	}
	c.JSON(http.StatusOK, types)
}

type createWodTypePayload struct {
	BoxID string `json:"box_id" binding:"required"`
	CreateWodTypeRequest
}

func (h *Handler) CreateWodType(c *gin.Context) {
	var req createWodTypePayload
	if !api.BindJSON(c, &req) {
		return
	}

	wt, err := h.service.CreateWodType(c.Request.Context(), req.BoxID, req.CreateWodTypeRequest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create WOD type"})
		return
	}
	c.JSON(http.StatusCreated, wt)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrClassNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Class not found"})
	case errors.Is(err, ErrClassCancelled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Class is already cancelled"})
	case errors.Is(err, ErrNothingToSave):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Nothing to update"})
	case errors.Is(err, ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Class must end after it starts"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}
