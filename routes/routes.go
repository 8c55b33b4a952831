package routes

import (
	"canteen-api/handlers"
	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the API. authenticate resolves the caller for every
// /api request; the groups below decide whether one is required. throttle,
// when set, guards the credential endpoints.
func SetupRoutes(r *gin.Engine, h *handlers.Handler, authenticate, throttle gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.Use(authenticate)

	signedIn := middleware.RequireAuth()
	admin := middleware.RequireRole(models.RoleAdmin)

	// ── Credential routes ──────────────────────────────────────────
	credentials := api.Group("/auth")
	if throttle != nil {
		credentials.Use(throttle)
	}
	{
		credentials.POST("/send-otp", h.SendOTP)
		credentials.POST("/verify-otp", h.VerifyOTP)
		credentials.POST("/register", h.Register)
		credentials.POST("/login", h.Login)
	}

	// ── Public routes ──────────────────────────────────────────────
	{
		api.POST("/auth/logout", h.Logout)

		api.GET("/menu", h.GetMenu)
		api.GET("/menu/category/:category", h.GetMenu)
		api.GET("/menu/:id", h.GetMenuItem)

		// guests may order; a signed-in caller owns the order
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/guest/:phone", h.GetGuestOrders)

		api.GET("/state-machine", h.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	user := api.Group("")
	user.Use(signedIn)
	{
		user.GET("/auth/current-user", h.CurrentUser)
		user.PUT("/auth/profile", h.UpdateProfile)
		user.POST("/auth/email/send-verification", h.SendEmailVerification)
		user.POST("/auth/email/verify", h.VerifyEmail)

		user.GET("/orders/my-orders", h.GetMyOrders)
		user.GET("/orders/:id", h.GetOrderDetail)
		user.PUT("/orders/:id/cancel", h.CancelOrder)
	}

	// ── Admin routes ───────────────────────────────────────────────
	staff := api.Group("")
	staff.Use(signedIn, admin)
	{
		staff.GET("/menu/all", h.GetFullMenu)
		staff.POST("/menu", h.AddMenuItem)
		staff.PUT("/menu/:id", h.UpdateMenuItem)
		staff.DELETE("/menu/:id", h.DeleteMenuItem)
		staff.PUT("/menu/:id/toggle-availability", h.ToggleAvailability)

		staff.GET("/orders/all", h.AdminGetAllOrders)
		staff.PUT("/orders/:id/status", h.UpdateOrderStatus)
		staff.PUT("/orders/:id/payment", h.UpdatePaymentStatus)

		staff.GET("/admin/users", h.AdminGetAllUsers)
	}
}
