// README: Driver-facing handlers for accept/pickup/complete and availability.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"laoyou/internal/modules/order"
	"laoyou/internal/types"
)

// AvailabilityStore tracks which drivers are open for matching; implemented
// by dispatch.RedisFinder.
type AvailabilityStore interface {
	SetAvailable(ctx context.Context, driverID types.ID, pos types.Location) error
	SetUnavailable(ctx context.Context, driverID types.ID) error
}

type DriverHandler struct {
	order        *order.Service
	availability AvailabilityStore
}

func NewDriverHandler(svc *order.Service, availability AvailabilityStore) *DriverHandler {
	return &DriverHandler{order: svc, availability: availability}
}

type acceptReq struct {
	DriverID     string `json:"driver_id"`
	DriverName   string `json:"driver_name,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

func (h *DriverHandler) Accept(c *gin.Context) {
	id := c.Param("id")
	var req acceptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	err := h.order.Accept(c.Request.Context(), order.AcceptCommand{
		OrderID:      types.ID(id),
		DriverID:     types.ID(req.DriverID),
		DriverName:   req.DriverName,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusDriverAccepted})
}

type pickUpReq struct {
	DriverID string `json:"driver_id"`
}

func (h *DriverHandler) PickUp(c *gin.Context) {
	id := c.Param("id")
	var req pickUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	err := h.order.PickUp(c.Request.Context(), order.PickUpCommand{
		OrderID:  types.ID(id),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusPickedUp})
}

type completeReq struct {
	DriverID    string  `json:"driver_id"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

func (h *DriverHandler) Complete(c *gin.Context) {
	id := c.Param("id")
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	o, err := h.order.Complete(c.Request.Context(), order.CompleteCommand{
		OrderID:     types.ID(id),
		DriverID:    types.ID(req.DriverID),
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type availabilityReq struct {
	DriverID  string  `json:"driver_id"`
	Available bool    `json:"available"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}

	var err error
	if req.Available {
		pos := types.Location{Lat: req.Lat, Lng: req.Lng, Address: "driver"}
		if !pos.Valid() {
			writeError(c, http.StatusBadRequest, "invalid position")
			return
		}
		err = h.availability.SetAvailable(c.Request.Context(), types.ID(req.DriverID), pos)
	} else {
		err = h.availability.SetUnavailable(c.Request.Context(), types.ID(req.DriverID))
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "availability update failed")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": req.DriverID, "available": req.Available})
}
