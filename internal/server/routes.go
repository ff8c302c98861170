// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/ambatobuy/internal/handlers"
	"codeberg.org/oliverandrich/ambatobuy/internal/middleware"
	authsvc "codeberg.org/oliverandrich/ambatobuy/internal/services/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/preorder"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/session"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, deps *Deps, auth *authsvc.Service, orders *preorder.Service, sessions *session.Manager) {
	h := handlers.New(deps.Store)
	ah := handlers.NewAuth(auth, sessions)
	oh := handlers.NewOrders(orders)

	authenticated := middleware.Authenticate(auth, sessions)

	// Public
	e.GET("/health", h.Health)
	e.GET("/products", h.Products)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	// Auth. /me and the verification routes accept pending tokens.
	a := e.Group("/auth")
	a.POST("/signup", ah.Signup)
	a.POST("/login", ah.Login)
	a.POST("/logout", ah.Logout)
	a.POST("/forgot-password", ah.ForgotPassword)
	a.POST("/reset-password", ah.ResetPassword)
	a.GET("/me", ah.Me, authenticated)
	a.POST("/verify-email", ah.VerifyEmail, authenticated)
	a.POST("/resend-otp", ah.ResendOTP, authenticated)

	// Self-service pre-orders
	po := e.Group("/pre-order", authenticated, middleware.RequireVerified)
	po.GET("", oh.ListMine)
	po.POST("", oh.Create)
	po.DELETE("", oh.Cancel)

	// Admin
	admin := e.Group("/admin", authenticated, middleware.RequireVerified, middleware.RequireAdmin)
	admin.GET("/orders", oh.AdminList)
	admin.PATCH("/orders", oh.AdminUpdateStatus)
	admin.DELETE("/orders", oh.AdminDelete)
	admin.GET("/orders/export", oh.AdminExport)
}
