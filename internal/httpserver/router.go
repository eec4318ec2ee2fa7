package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/enchanted/marketplace/internal/handlers"
	"github.com/enchanted/marketplace/internal/middleware"
)

type Deps struct {
	JWTSecret      []byte
	UploadPath     string
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "marketplace"})
	})

	auth := middleware.BearerAuth(d.JWTSecret)

	user := e.Group("/user")
	user.POST("/register", d.UserHandler.Register)
	user.POST("/login", d.UserHandler.Login)
	user.GET("/profile", d.UserHandler.GetProfile, auth)
	user.PUT("/profile", d.UserHandler.UpdateProfile, auth)

	e.GET("/products", d.ProductHandler.GetProducts)
	e.GET("/products/search", d.SearchHandler.Search)
	e.POST("/products", d.ProductHandler.CreateProduct, auth)
	e.PUT("/products/:id", d.ProductHandler.UpdateProduct, auth)
	e.DELETE("/products/:id", d.ProductHandler.DeleteProduct, auth)
	e.POST("/products/:id/image", d.ProductHandler.UploadProductImage, auth)
	e.GET("/my-products", d.ProductHandler.GetMyProducts, auth)

	e.Static("/uploads", d.UploadPath)
}
