package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/stokvelhq/patron/internal/checkout/domain"
)

// ListTiers returns the contribution catalog with USD amounts computed at
// the current exchange rate.
func (s *Server) ListTiers(c *gin.Context) {
	tiers, rate, err := s.checkoutSvc.ListTiers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tiers":         tiers,
		"exchange_rate": rate,
	})
}

// BeginCheckout opens a gateway session and returns the authorization URL
// the payer should be redirected to.
func (s *Server) BeginCheckout(c *gin.Context) {
	var req checkoutdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	session, err := s.checkoutSvc.BeginCheckout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ContributeCallback resolves the browser redirect from the gateway. The
// gateway sends the reference as trxref or reference.
func (s *Server) ContributeCallback(c *gin.Context) {
	reference := c.Query("trxref")
	if reference == "" {
		reference = c.Query("reference")
	}

	result, err := s.checkoutSvc.ResolveCallback(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{
		"outcome":   result.Outcome,
		"reference": result.Payment.Reference,
	}
	if result.Outcome == checkoutdomain.OutcomeSuccess {
		resp["amount_cents"] = result.Payment.Amount
	}
	c.JSON(http.StatusOK, resp)
}
