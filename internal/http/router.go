// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laoyou/internal/http/handlers"
	"laoyou/internal/http/middleware"
	"laoyou/internal/logger"
	"laoyou/internal/modules/address"
	"laoyou/internal/modules/fee"
	"laoyou/internal/modules/order"
)

type RouterDeps struct {
	Order        *order.Service
	Address      *address.Service
	Fees         *fee.Engine
	Availability handlers.AvailabilityStore
	Log          logger.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.POST("/api/orders/:id/dispatch", orderHandler.Dispatch)
	r.POST("/api/orders/:id/cancel", orderHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Order, deps.Availability)
	r.POST("/api/drivers/orders/:id/accept", driverHandler.Accept)
	r.POST("/api/drivers/orders/:id/pickup", driverHandler.PickUp)
	r.POST("/api/drivers/orders/:id/complete", driverHandler.Complete)
	r.POST("/api/drivers/availability", driverHandler.SetAvailability)

	addressHandler := handlers.NewAddressHandler(deps.Address)
	r.POST("/api/addresses", addressHandler.Add)
	r.GET("/api/addresses", addressHandler.List)
	r.POST("/api/addresses/:id/default", addressHandler.SetDefault)

	feeHandler := handlers.NewFeeHandler(deps.Fees)
	r.GET("/api/fees", feeHandler.Rates)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
