package handlers

import (
	"os"

	"shop-service/internal/auth"
	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/orders"
	"shop-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	o        *orders.Conf
	cart     *cart.Conf
	catalog  catalog.Store
	idem     Idempotency
	retries  uint64
	validate *validator.Validate
}

// Options carries the optional collaborators of the HTTP layer.
type Options struct {
	// Retries bounds how often a retryable engine failure is retried.
	Retries int
	// Idempotency enables the Idempotency-Key header on POST /orders when set.
	Idempotency Idempotency
}

func NewHandler(o *orders.Conf, cc *cart.Conf, cat catalog.Store, opts Options) *Handler {
	return &Handler{
		o:        o,
		cart:     cc,
		catalog:  cat,
		idem:     opts.Idempotency,
		retries:  uint64(max(opts.Retries, 0)),
		validate: validator.New(),
	}
}

func API(endpointPrefix string, k *auth.Keys, o *orders.Conf, cc *cart.Conf, cat catalog.Store, opts Options) *gin.Engine {
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode == gin.TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	m, err := middleware.NewMid(k)
	if err != nil {
		panic(err)
	}

	h := NewHandler(o, cc, cat, opts)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.GET("/ping", HealthCheck)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:id", h.GetProduct)
	}

	user := r.Group(endpointPrefix)
	{
		user.Use(m.Authentication())

		user.GET("/cart", m.Authorize(h.GetCart, auth.RoleUser))
		user.POST("/cart", m.Authorize(h.AddToCart, auth.RoleUser))
		user.DELETE("/cart/:product_id", m.Authorize(h.RemoveFromCart, auth.RoleUser))

		user.POST("/orders", m.Authorize(h.PlaceOrder, auth.RoleUser))
		user.GET("/orders", m.Authorize(h.ListOrders, auth.RoleUser))
		user.GET("/orders/:id", m.Authorize(h.GetOrder, auth.RoleUser))
		user.PUT("/orders/:id/cancel", m.Authorize(h.CancelOrder, auth.RoleUser))
		user.PUT("/orders/:id/pay", m.Authorize(h.PayOrder, auth.RoleUser))
		user.PUT("/orders/:id/confirm", m.Authorize(h.ConfirmOrder, auth.RoleUser))

		user.PUT("/orders/:id/ship", m.Authorize(h.ShipOrder, auth.RoleAdmin))
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}
