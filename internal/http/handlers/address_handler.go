// README: Saved-address handlers for add/list/set-default.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laoyou/internal/modules/address"
	"laoyou/internal/types"
)

type AddressHandler struct {
	address *address.Service
}

func NewAddressHandler(svc *address.Service) *AddressHandler {
	return &AddressHandler{address: svc}
}

type addAddressReq struct {
	UserID       string  `json:"user_id"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Address      string  `json:"address"`
	Province     string  `json:"province,omitempty"`
	City         string  `json:"city,omitempty"`
	District     string  `json:"district,omitempty"`
	Detail       string  `json:"detail,omitempty"`
	DisplayName  string  `json:"display_name"`
	Tag          string  `json:"tag,omitempty"`
	Priority     int     `json:"priority,omitempty"`
	IsDefault    bool    `json:"is_default"`
	BuildingInfo string  `json:"building_info,omitempty"`
	Note         string  `json:"note,omitempty"`
}

type addressView struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Address      string  `json:"address"`
	DisplayName  string  `json:"display_name"`
	Tag          string  `json:"tag"`
	Priority     int     `json:"priority"`
	IsDefault    bool    `json:"is_default"`
	BuildingInfo string  `json:"building_info,omitempty"`
	Note         string  `json:"note,omitempty"`
}

func viewOfAddress(a *address.CommonAddress) addressView {
	return addressView{
		ID:           string(a.ID),
		UserID:       string(a.UserID),
		Lat:          a.Location.Lat,
		Lng:          a.Location.Lng,
		Address:      a.Location.Address,
		DisplayName:  a.DisplayName,
		Tag:          string(a.Tag),
		Priority:     a.Priority,
		IsDefault:    a.IsDefault,
		BuildingInfo: a.BuildingInfo,
		Note:         a.Note,
	}
}

func (h *AddressHandler) Add(c *gin.Context) {
	var req addAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	a, err := h.address.Add(c.Request.Context(), address.AddInput{
		UserID: types.ID(req.UserID),
		Location: types.Location{
			Lat:      req.Lat,
			Lng:      req.Lng,
			Address:  req.Address,
			Province: req.Province,
			City:     req.City,
			District: req.District,
			Detail:   req.Detail,
		},
		DisplayName:  req.DisplayName,
		Tag:          address.Tag(req.Tag),
		Priority:     req.Priority,
		IsDefault:    req.IsDefault,
		BuildingInfo: req.BuildingInfo,
		Note:         req.Note,
	})
	if err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOfAddress(a))
}

func (h *AddressHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	list, err := h.address.List(c.Request.Context(), types.ID(userID))
	if err != nil {
		writeAddressError(c, err)
		return
	}
	views := make([]addressView, 0, len(list))
	for i := range list {
		views = append(views, viewOfAddress(&list[i]))
	}
	writeJSON(c, http.StatusOK, gin.H{"addresses": views})
}

type setDefaultReq struct {
	UserID string `json:"user_id"`
}

func (h *AddressHandler) SetDefault(c *gin.Context) {
	id := c.Param("id")
	var req setDefaultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.address.SetDefault(c.Request.Context(), types.ID(req.UserID), types.ID(id)); err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "is_default": true})
}
