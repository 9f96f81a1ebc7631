package handlers

import (
	"net/http"

	"cafe-fulfillment/internal/services"
	"cafe-fulfillment/internal/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	fulfillmentService *services.FulfillmentService
}

func NewOrderHandler(fulfillmentService *services.FulfillmentService) *OrderHandler {
	return &OrderHandler{
		fulfillmentService: fulfillmentService,
	}
}

// ScheduleFulfillment is the manual trigger mirroring the payment event;
// staff use it to retry when the payment-success message was missed. Calling
// it twice is safe: stale preconditions make the duplicate transitions no-op.
func (h *OrderHandler) ScheduleFulfillment(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order ID is required", ""))
		return
	}

	if err := h.fulfillmentService.ScheduleFulfillment(c.Request.Context(), orderID); err != nil {
		switch err {
		case services.ErrOrderNotFound:
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		case services.ErrReservationNotFound, services.ErrProductNotFound:
			c.JSON(http.StatusUnprocessableEntity, utils.ErrorResponse("Order references missing data", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to schedule fulfillment", err.Error()))
		}
		return
	}

	c.JSON(http.StatusAccepted, utils.SuccessResponse("Fulfillment scheduled", gin.H{
		"order_id": orderID,
	}))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order ID is required", ""))
		return
	}

	order, items, err := h.fulfillmentService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if err == services.ErrOrderNotFound {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve order", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order retrieved", gin.H{
		"order": order,
		"items": items,
	}))
}
