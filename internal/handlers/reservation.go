package handlers

import (
	"net/http"
	"time"

	"cafe-fulfillment/internal/models"
	"cafe-fulfillment/internal/services"
	"cafe-fulfillment/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservationService *services.ReservationService
}

func NewReservationHandler(reservationService *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

type bookingRequest struct {
	TableID         string    `json:"table_id" binding:"required"`
	CustomerID      string    `json:"customer_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	PartySize       int       `json:"party_size" binding:"required"`
	DurationMinutes int       `json:"duration_minutes"`
	BufferMinutes   int       `json:"buffer_minutes"`
	Notes           string    `json:"notes"`
}

func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	candidate := models.ReservationCandidate{
		TableID:         req.TableID,
		CustomerID:      req.CustomerID,
		StartTime:       req.StartTime,
		PartySize:       req.PartySize,
		DurationMinutes: req.DurationMinutes,
		BufferMinutes:   req.BufferMinutes,
		Notes:           req.Notes,
	}

	reservation, reason, conflict, err := h.reservationService.BookReservation(c.Request.Context(), candidate)
	if err != nil {
		switch err {
		case services.ErrTableNotFound:
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Table not found", err.Error()))
		case services.ErrInvalidCandidate:
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid reservation request", err.Error()))
		case services.ErrTableBusy:
			c.JSON(http.StatusConflict, utils.ErrorResponse("Table is being booked, retry shortly", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Booking failed", err.Error()))
		}
		return
	}

	// A rejection is a business outcome, not an error.
	if reason != models.ReasonNone {
		resp := utils.ErrorResponse("Reservation rejected", reason.String())
		if conflict != nil {
			resp["conflicting_reservation"] = conflict
		}
		c.JSON(http.StatusConflict, resp)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Reservation created", reservation))
}

func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	reservationID := c.Param("id")
	if reservationID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Reservation ID is required", ""))
		return
	}

	if err := h.reservationService.CancelReservation(c.Request.Context(), reservationID); err != nil {
		switch err {
		case services.ErrReservationNotFound:
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Reservation not found", err.Error()))
		case services.ErrCancelWindowClosed:
			c.JSON(http.StatusUnprocessableEntity, utils.ErrorResponse("Cancellation window has closed", err.Error()))
		case services.ErrReservationFinal:
			c.JSON(http.StatusConflict, utils.ErrorResponse("Reservation already finalized", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Cancellation failed", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Reservation cancelled", gin.H{
		"reservation_id": reservationID,
	}))
}

func (h *ReservationHandler) ConfirmReservation(c *gin.Context) {
	reservationID := c.Param("id")
	if reservationID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Reservation ID is required", ""))
		return
	}

	if err := h.reservationService.ConfirmReservation(c.Request.Context(), reservationID); err != nil {
		if err == services.ErrReservationFinal {
			c.JSON(http.StatusConflict, utils.ErrorResponse("Reservation is not pending", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Confirmation failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Reservation confirmed", gin.H{
		"reservation_id": reservationID,
	}))
}

func (h *ReservationHandler) ListTableReservations(c *gin.Context) {
	tableID := c.Param("table_id")
	if tableID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Table ID is required", ""))
		return
	}

	reservations, err := h.reservationService.ListTableReservations(c.Request.Context(), tableID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list reservations", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Reservations retrieved", reservations))
}
