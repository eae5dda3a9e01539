package box

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wodbox/internal/api"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetMyBox(c *gin.Context) {
	ownerID, ok := api.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	b, err := h.service.GetMyBox(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch box"})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "You have not created a box yet"})
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBox(c *gin.Context) {
	ownerID, ok := api.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CreateBoxRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.CreateBox(c.Request.Context(), ownerID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create box"})
		return
	}

	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBox(c *gin.Context) {
	b, err := h.service.GetBoxByID(c.Request.Context(), c.Param("boxID"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch box")
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateBox(c *gin.Context) {
	var req UpdateBoxRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.UpdateBox(c.Request.Context(), c.Param("boxID"), req)
	if err != nil {
		h.writeError(c, err, "Failed to update box")
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) DeactivateBox(c *gin.Context) {
	b, err := h.service.DeactivateBox(c.Request.Context(), c.Param("boxID"))
	if err != nil {
		h.writeError(c, err, "Failed to deactivate box")
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBox(c *gin.Context) {
	if err := h.service.DeleteBox(c.Request.Context(), c.Param("boxID")); err != nil {
		h.writeError(c, err, "Failed to delete box")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Box deleted"})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrBoxNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Box not found"})
	case errors.Is(err, ErrNothingToSave):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Nothing to update"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}
