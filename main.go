package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/config"
	"cafe-fulfillment/internal/handlers"
	"cafe-fulfillment/internal/kafka"
	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/middleware"
	"cafe-fulfillment/internal/models"
	rediswrap "cafe-fulfillment/internal/redis"
	"cafe-fulfillment/internal/scheduler"
	"cafe-fulfillment/internal/services"
	"cafe-fulfillment/internal/storage"

	"github.com/gin-gonic/gin"
)

// Global logger instance
var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Cafe fulfillment service starting up...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	defer store.Close()

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()

	log.LogProcess("KAFKA", "Initializing Kafka consumer...")
	paymentConsumer, err := kafka.NewPaymentConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
	}
	defer paymentConsumer.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	tableLocker := rediswrap.NewRedis(redisClient)
	log.LogProcess("REDIS", "Redis table locker initialized")

	clk := clock.New()
	taskScheduler := scheduler.New(clk, cfg.Scheduler.Workers, log)
	defer taskScheduler.Stop()
	log.LogProcess("SCHEDULER", "Delayed task scheduler started")

	fulfillmentService := services.NewFulfillmentService(store, taskScheduler, clk, kafkaProducer, log)
	log.LogProcess("SERVICE", "Fulfillment service initialized")

	policy, err := services.NewConflictPolicy(cfg.Booking)
	if err != nil {
		log.Fatal("CONFIG", "Invalid booking configuration: "+err.Error())
	}
	reservationService := services.NewReservationService(store, tableLocker, policy, cfg.Booking.CancelWindowMin, clk, kafkaProducer, log)
	log.LogProcess("SERVICE", "Reservation service initialized")

	orderHandler := handlers.NewOrderHandler(fulfillmentService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	log.LogProcess("HANDLER", "All handlers initialized")

	// Start Kafka consumer in background: a completed payment schedules the
	// paid order's fulfillment.
	go func() {
		log.LogKafka("START", "consumer", "Starting Kafka consumer goroutine")
		err := paymentConsumer.ConsumePayments(context.Background(), func(event *models.PaymentEvent) error {
			if event.Type != "payment.success" {
				return nil
			}
			return fulfillmentService.ScheduleFulfillment(context.Background(), event.OrderID)
		})
		if err != nil {
			log.Error("KAFKA", "Consumer error: "+err.Error())
		}
	}()

	router := setupRouter(orderHandler, reservationHandler, store)
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on "+cfg.Server.Port)
		log.Info("STARTUP", "Cafe fulfillment service is ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "Cafe fulfillment service shutdown completed")
}

func setupRouter(orderHandler *handlers.OrderHandler, reservationHandler *handlers.ReservationHandler, store *storage.MySQLStore) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(log))

	router.GET("/health", func(c *gin.Context) {
		if err := store.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "cafe-fulfillment",
			"version":   "1.0.0",
		})
	})

	v1 := router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.POST("/:id/fulfillment", orderHandler.ScheduleFulfillment)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		reservations := v1.Group("/reservations")
		{
			reservations.POST("", reservationHandler.CreateReservation)
			reservations.POST("/:id/cancel", reservationHandler.CancelReservation)
			reservations.POST("/:id/confirm", reservationHandler.ConfirmReservation)
			reservations.GET("/table/:table_id", reservationHandler.ListTableReservations)
		}
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
