package booking

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wodbox/internal/api"
	"wodbox/internal/profile"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	athleteID, ok := api.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	bookings, err := h.service.GetMyBookings(c.Request.Context(), athleteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) ListClassBookings(c *gin.Context) {
	bookings, err := h.service.GetClassBookings(c.Request.Context(), c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch class bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) BookClass(c *gin.Context) {
	athleteID, ok := api.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CreateBookingRequest
	if !api.BindJSON(c, &req) {
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), athleteID, req)
	if err != nil {
		h.writeError(c, err, "Failed to create booking")
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// CancelBooking lets athletes cancel their own bookings. Business owners
// may cancel any booking.
func (h *Handler) CancelBooking(c *gin.Context) {
	userID, ok := api.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CancelBookingRequest
	if !api.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	bookingID := c.Param("bookingID")

	if role, _ := api.GetUserRole(c); role != string(profile.RoleBusinessOwner) {
		existing, err := h.service.GetBookingByID(ctx, bookingID)
		if err != nil {
			h.writeError(c, err, "Failed to cancel booking")
			return
		}
		if existing.AthleteID != userID {
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "You can only cancel your own bookings"})
			return
		}
	}

	booking, err := h.service.CancelBooking(ctx, bookingID, req.Reason)
	if err != nil {
		h.writeError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *Handler) CheckIn(c *gin.Context) {
	booking, err := h.service.CheckIn(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		h.writeError(c, err, "Failed to check in")
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	if err := h.service.DeleteBooking(c.Request.Context(), c.Param("bookingID")); err != nil {
		h.writeError(c, err, "Failed to delete booking")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Booking deleted"})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Booking not found"})
	case errors.Is(err, ErrAlreadyBooked):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "You already booked this class"})
	case errors.Is(err, ErrClassFull):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Class is full"})
	case errors.Is(err, ErrBookingNotActive):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Booking is not active"})
	case errors.Is(err, ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Already checked in"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}
