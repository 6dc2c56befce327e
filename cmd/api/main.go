package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/database"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/handlers"
	"github.com/aquaflow/tanker-backend/internal/middleware"
	"github.com/aquaflow/tanker-backend/internal/ordersync"
	"github.com/aquaflow/tanker-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Per-driver order sync sessions, all backed by the same gateway
	gw := gateway.NewGormGateway(db)
	registry := ordersync.NewRegistry(gw, ordersync.Options{})

	// Booking changes published by other instances invalidate the views
	// they touch; local callers already updated their own session
	services.SubscribeBookingUpdates(context.Background(), func(update services.BookingUpdate) {
		views := make([]booking.View, 0, len(update.Views))
		for _, v := range update.Views {
			views = append(views, booking.View(v))
		}
		registry.InvalidateViews(views...)
	})

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve locally stored delivery proofs when S3 is not configured
	r.Static("/uploads", "./uploads")

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			// Customer booking routes
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(db, hub))
				bookings.GET("", handlers.GetCustomerBookings(db))
				bookings.GET("/:id", handlers.GetBooking(db))
				bookings.POST("/:id/cancel", handlers.CancelBooking(db, gw, hub))
			}

			// Driver order routes
			driver := protected.Group("/driver")
			{
				driver.GET("/orders", handlers.GetDriverOrders(registry))
				driver.POST("/orders/:id/accept", handlers.AcceptOrder(db, registry, hub))
				driver.POST("/orders/:id/start", handlers.StartDelivery(registry, hub))
				driver.POST("/orders/:id/deliver", handlers.CompleteDelivery(registry, hub))
				driver.GET("/earnings", handlers.GetDriverEarnings(gw))
				driver.GET("/duty", handlers.GetOnDuty())
				driver.POST("/duty", handlers.SetOnDuty(registry))
			}

			// Pricing and catalogue routes
			pricing := protected.Group("/pricing")
			{
				pricing.GET("", handlers.GetPricing(db))
				pricing.PUT("", handlers.UpdatePricing(db))
				pricing.POST("/quote", handlers.QuotePrice(db))
			}

			sizes := protected.Group("/tanker-sizes")
			{
				sizes.GET("", handlers.GetTankerSizes(db))
				sizes.POST("", handlers.CreateTankerSize(db))
				sizes.PUT("/:id", handlers.UpdateTankerSize(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
