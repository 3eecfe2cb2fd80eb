package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/veloroute/veloroute_core/internal/api"
	"github.com/veloroute/veloroute_core/internal/auth"
	"github.com/veloroute/veloroute_core/internal/cache"
	"github.com/veloroute/veloroute_core/internal/db"
	"github.com/veloroute/veloroute_core/internal/elevation"
	"github.com/veloroute/veloroute_core/internal/interpolation"
	"github.com/veloroute/veloroute_core/internal/middleware"
	"github.com/veloroute/veloroute_core/internal/repository"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

func main() {
	log.Println("Starting veloroute API server...")

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("✓ Loaded .env")
	}

	// Initialize database connection
	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	// Initialize Redis connection
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("✓ Redis connection established")

	// Wire the adapters into the use-case layer
	repo := repository.NewRouteRepository(pool)
	interp := interpolation.NewOSRMClientFromEnv()
	elev := elevation.NewStoreFromEnv()
	reserved := auth.NewReservedListFromEnv()
	verifier := auth.NewVerifierFromEnv()

	uc := usecase.NewRouteUseCase(repo, interp, elev, reserved)
	handler := api.NewHandler(uc)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "veloroute API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: api.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	perSecond, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_SECOND", "10"))
	app.Use(middleware.RateLimit(rdb, perSecond))

	// Routes
	api.RegisterRoutes(app, handler, verifier)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "endpoint not found")
	})

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
