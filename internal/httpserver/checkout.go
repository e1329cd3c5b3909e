package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/service/checkout"
)

type checkoutHandler struct {
	svc     checkoutService
	cartURL string
	logger  *zap.Logger
}

type placeOrderRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

type paymentCallbackRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

type redirectResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

func (h *checkoutHandler) open(c *gin.Context) {
	sess, err := h.svc.Open(c.Request.Context(), customerToken(c))
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			h.redirectToCart(c)
			return
		}
		h.logger.Warn("open checkout", zap.Error(err))
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, sess.View())
}

func (h *checkoutHandler) get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (h *checkoutHandler) updateAddress(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	view, err := sess.SetAddress(fields)
	if err != nil {
		writeError(c, err, &view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *checkoutHandler) placeOrder(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_method is required"})
		return
	}
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported payment_method"})
		return
	}

	view, err := sess.PlaceOrder(c.Request.Context(), method)
	switch {
	case err == nil, isPaymentOutcome(err):
		c.JSON(http.StatusOK, view)
	case errors.Is(err, domain.ErrEmptyCart):
		h.redirectToCart(c)
	default:
		writeError(c, err, &view)
	}
}

func (h *checkoutHandler) paymentCallback(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "razorpay_order_id, razorpay_payment_id and razorpay_signature are required"})
		return
	}
	view, err := sess.PaymentCallback(c.Request.Context(), domain.GatewayPayment{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	h.writeOutcome(c, view, err)
}

func (h *checkoutHandler) dismissPayment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	view, err := sess.DismissPayment(c.Request.Context())
	h.writeOutcome(c, view, err)
}

func (h *checkoutHandler) writeOutcome(c *gin.Context, view checkout.View, err error) {
	if err == nil || isPaymentOutcome(err) {
		c.JSON(http.StatusOK, view)
		return
	}
	writeError(c, err, &view)
}

func (h *checkoutHandler) session(c *gin.Context) (*checkout.Session, bool) {
	sess, err := h.svc.Get(c.Param("id"), customerToken(c))
	if err != nil {
		writeError(c, err, nil)
		return nil, false
	}
	return sess, true
}

func (h *checkoutHandler) redirectToCart(c *gin.Context) {
	c.Header("Location", h.cartURL)
	c.JSON(http.StatusSeeOther, redirectResponse{Error: domain.ErrEmptyCart.Error(), Redirect: h.cartURL})
}
