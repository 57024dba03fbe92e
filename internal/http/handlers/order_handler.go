// README: Rider-facing order handlers for create/get/dispatch/cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"laoyou/internal/modules/order"
	"laoyou/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	UserID             string      `json:"user_id"`
	Start              locationRef `json:"start"`
	End                locationRef `json:"end"`
	StartTime          string      `json:"start_time,omitempty"` // RFC 3339; empty means now
	NeedElderlyService bool        `json:"need_elderly_service"`
	Note               string      `json:"note,omitempty"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}

	startTime := time.Now()
	if req.StartTime != "" {
		t, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid start_time")
			return
		}
		startTime = t
	}

	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		UserID:             types.ID(req.UserID),
		StartRef:           req.Start.toRef(),
		EndRef:             req.End.toRef(),
		StartTime:          startTime,
		NeedElderlyService: req.NeedElderlyService,
		Note:               req.Note,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOf(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) Dispatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	driverID, err := h.order.Dispatch(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "driver_id": driverID, "status": order.StatusDispatched})
}

type cancelOrderReq struct {
	Actor   string `json:"actor"` // user / driver / system
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Actor == "" {
		req.Actor = "user"
	}
	err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(id),
		Actor:   req.Actor,
		ActorID: types.ID(req.ActorID),
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusCanceled})
}
