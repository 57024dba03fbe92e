// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"laoyou/internal/modules/address"
	"laoyou/internal/modules/dispatch"
	"laoyou/internal/modules/order"
	"laoyou/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, address.ErrBadRequest),
		errors.Is(err, address.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, address.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrForbidden), errors.Is(err, address.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrAlreadyExists):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrNoDriver):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeAddressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, address.ErrBadRequest), errors.Is(err, address.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, address.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, address.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// locationRef is the wire form of an order endpoint: a saved address, a
// curated destination, or an inline manual location.
type locationRef struct {
	Kind     string  `json:"kind"`
	RefID    string  `json:"ref_id,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	Address  string  `json:"address,omitempty"`
	Province string  `json:"province,omitempty"`
	City     string  `json:"city,omitempty"`
	District string  `json:"district,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

func (r locationRef) toRef() address.Ref {
	return address.Ref{
		Kind:  address.RefKind(r.Kind),
		RefID: types.ID(r.RefID),
		Manual: types.Location{
			Lat:      r.Lat,
			Lng:      r.Lng,
			Address:  r.Address,
			Province: r.Province,
			City:     r.City,
			District: r.District,
			Detail:   r.Detail,
		},
	}
}

type locationView struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type orderView struct {
	OrderID            string       `json:"order_id"`
	UserID             string       `json:"user_id"`
	Status             string       `json:"status"`
	Start              locationView `json:"start"`
	End                locationView `json:"end"`
	NeedElderlyService bool         `json:"need_elderly_service"`
	Note               string       `json:"note,omitempty"`

	DriverID     string `json:"driver_id,omitempty"`
	DriverName   string `json:"driver_name,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`

	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`

	BaseFee     float64 `json:"base_fee"`
	DistanceFee float64 `json:"distance_fee"`
	TimeFee     float64 `json:"time_fee"`
	ExtraFee    float64 `json:"extra_fee"`
	DiscountFee float64 `json:"discount_fee"`
	TotalFee    float64 `json:"total_fee"`
	PayStatus   string  `json:"pay_status,omitempty"`

	Cancelor     string `json:"cancelor,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	DeadlineAt   time.Time  `json:"deadline_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt   *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
}

func viewOf(o *order.Order) orderView {
	return orderView{
		OrderID:            string(o.ID),
		UserID:             string(o.UserID),
		Status:             string(o.Status),
		Start:              locationView{Lat: o.Start.Lat, Lng: o.Start.Lng, Address: o.Start.Address},
		End:                locationView{Lat: o.End.Lat, Lng: o.End.Lng, Address: o.End.Address},
		NeedElderlyService: o.NeedElderlyService,
		Note:               o.Note,
		DriverID:           string(o.DriverID),
		DriverName:         o.DriverName,
		LicensePlate:       o.LicensePlate,
		DistanceKm:         o.DistanceKm,
		DurationMin:        o.DurationMin,
		BaseFee:            o.Fee.BaseFee,
		DistanceFee:        o.Fee.DistanceFee,
		TimeFee:            o.Fee.TimeFee,
		ExtraFee:           o.Fee.ExtraFee,
		DiscountFee:        o.Fee.DiscountFee,
		TotalFee:           o.Fee.TotalFee,
		PayStatus:          o.PayStatus,
		Cancelor:           o.Cancelor,
		CancelReason:       o.CancelReason,
		CreatedAt:          o.CreatedAt,
		DeadlineAt:         o.DeadlineAt,
		DispatchedAt:       o.DispatchedAt,
		AcceptedAt:         o.AcceptedAt,
		PickedUpAt:         o.PickedUpAt,
		CompletedAt:        o.CompletedAt,
		CanceledAt:         o.CanceledAt,
	}
}
