package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
)

type supportHandler struct {
	ledger paymentLedger
	logger *zap.Logger
}

type unverifiedPayment struct {
	AttemptID        string `json:"attempt_id"`
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Detail           string `json:"detail,omitempty"`
}

func (h *supportHandler) paymentEvents(c *gin.Context) {
	events, err := h.ledger.ListByOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.logger.Error("list payment events", zap.String("order_id", c.Param("order_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment events"})
		return
	}
	if events == nil {
		events = []domain.PaymentEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"results": events, "count": len(events)})
}

func (h *supportHandler) unverified(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	rows, err := h.ledger.ListUnverified(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list unverified payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unverified payments"})
		return
	}
	out := make([]unverifiedPayment, 0, len(rows))
	for _, r := range rows {
		out = append(out, unverifiedPayment{
			AttemptID:        r.AttemptID,
			OrderID:          r.OrderID,
			GatewayOrderID:   r.GatewayOrderID,
			GatewayPaymentID: r.GatewayPaymentID,
			Detail:           r.Detail,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}
