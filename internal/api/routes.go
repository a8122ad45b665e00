package api

import (
	"net/http"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires every handler onto the gin engine.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	rateLimiter *RateLimiter,
	authService service.AuthService,
	userService service.UserService,
	guideService service.GuideService,
	bookingService service.BookingService,
) {
	authHandler := NewAuthHandler(authService, userService)
	guideHandler := NewGuideHandler(guideService)
	tourHandler := NewTourHandler(bookingService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.Use(rateLimiter.Middleware())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Public guide browsing. Search must come before the :id route so
		// "search" is not parsed as a guide ID.
		apiV1.GET("/guides/search", guideHandler.Search)
		apiV1.GET("/guides/:id", guideHandler.GetGuide)
		apiV1.GET("/guides/:id/reviews", guideHandler.ListReviews)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/me/profile-image", authHandler.RequestProfileImageUpload)
		protected.PUT("/me/profile-image", authHandler.ConfirmProfileImage)

		// --- Guide profile management ---
		protected.POST("/guides", RoleMiddleware(domain.RoleGuide), guideHandler.CreateProfile)
		protected.GET("/guides/me", RoleMiddleware(domain.RoleGuide), guideHandler.GetMyGuide)
		protected.PUT("/guides/:id", RoleMiddleware(domain.RoleGuide), guideHandler.UpdateProfile)
		protected.PUT("/guides/:id/availability", RoleMiddleware(domain.RoleGuide), guideHandler.SetAvailability)

		// --- Reviews ---
		protected.POST("/guides/:id/reviews", RoleMiddleware(domain.RoleClient), guideHandler.AddReview)

		// --- Bookings ---
		protected.POST("/guides/:id/book", RoleMiddleware(domain.RoleClient), tourHandler.BookTour)
		protected.GET("/tours/my-tours", RoleMiddleware(domain.RoleClient), tourHandler.MyTours)
		protected.GET("/tours/guide-tours", RoleMiddleware(domain.RoleGuide), tourHandler.GuideTours)
		protected.GET("/tours/:id", tourHandler.GetTour)
		protected.PUT("/tours/:id/cancel", tourHandler.CancelTour)
		protected.PUT("/tours/:id/status", RoleMiddleware(domain.RoleGuide), tourHandler.UpdateStatus)
	}
}
