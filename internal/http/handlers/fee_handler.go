// README: Fare table handler; exposes the configured tariff to clients.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laoyou/internal/modules/fee"
)

type FeeHandler struct {
	fees *fee.Engine
}

func NewFeeHandler(engine *fee.Engine) *FeeHandler {
	return &FeeHandler{fees: engine}
}

// Rates returns the tariff so clients can show pricing before booking.
func (h *FeeHandler) Rates(c *gin.Context) {
	r := h.fees.Rates()
	writeJSON(c, http.StatusOK, gin.H{
		"base_fee":          r.BaseFee,
		"per_km":            r.PerKm,
		"per_min":           r.PerMin,
		"elderly_surcharge": r.ElderlySurcharge,
		"estimate_minutes":  r.EstimateMinutes,
	})
}
