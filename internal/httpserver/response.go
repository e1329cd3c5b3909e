package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/service/checkout"
)

type errorResponse struct {
	Error  string         `json:"error"`
	Field  string         `json:"field,omitempty"`
	Reason string         `json:"reason,omitempty"`
	View   *checkout.View `json:"session,omitempty"`
}

// statusFor maps a checkout error to its HTTP status.
func statusFor(err error) int {
	var t *domain.TransportError
	switch {
	case domain.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBusy), errors.Is(err, checkout.ErrNoPendingPayment):
		return http.StatusConflict
	case errors.As(err, &t):
		if t.StatusCode == http.StatusUnauthorized || t.StatusCode == http.StatusForbidden {
			return t.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error, view *checkout.View) {
	resp := errorResponse{Error: err.Error(), View: view}
	var v *domain.ValidationError
	if errors.As(err, &v) {
		resp.Field = v.Field
		resp.Reason = string(v.Reason)
	}
	if msg := domain.BackendMessage(err); msg != "" {
		resp.Error = msg
	}
	c.JSON(statusFor(err), resp)
}

// isPaymentOutcome reports errors that end a payment attempt after the
// order exists. Those are rendered through the session notice.
func isPaymentOutcome(err error) bool {
	var (
		g *domain.GatewayError
		m *domain.VerificationMismatchError
	)
	return errors.As(err, &g) || errors.As(err, &m)
}
