package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/config"
	"github.com/meridian-hq/meridian/pkg/errx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.App.Env)
	defer log.Sync()

	log.Info("starting meridian api server", zap.String("env", cfg.App.Env))

	container := NewContainer(cfg, log)
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "Meridian API",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler(log),
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins(),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Get("/health", healthCheckHandler(container))

	container.JobHandlers.RegisterRoutes(app)
	container.RevenueHandlers.RegisterRoutes(app)

	app.Use(notFoundHandler)

	container.StartBackgroundServices()

	startServer(app, container, log)
}

func newLogger(env string) *zap.Logger {
	var log *zap.Logger
	var err error
	if env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

// healthCheckHandler reports the status of the server and its dependencies.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "meridian-api",
			"worker":  container.Worker.IsRunning(),
		}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.GetRespHeader("X-Request-ID"),
	})
}

// globalErrorHandler converts internal errors to standard HTTP responses.
func globalErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.GetRespHeader("X-Request-ID")

		log.Error("request error",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.String("request_id", requestID),
			zap.Error(err))

		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{
				"error":      e.Message,
				"code":       "FIBER_ERROR",
				"request_id": requestID,
			})
		}

		var e *errx.Error
		if errx.As(err, &e) {
			response := fiber.Map{
				"error":      e.Message,
				"code":       e.Code,
				"type":       string(e.Type),
				"request_id": requestID,
			}
			if len(e.Details) > 0 {
				response["details"] = e.Details
			}
			return c.Status(e.HTTPStatus).JSON(response)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "An unexpected error occurred",
			"code":       "INTERNAL_ERROR",
			"type":       "INTERNAL",
			"request_id": requestID,
		})
	}
}

func corsOrigins() string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return origins
	}
	return "*"
}

// startServer runs the HTTP listener and blocks until a shutdown signal.
// On shutdown the worker stops first so in-flight jobs finish before the
// listener closes.
func startServer(app *fiber.App, container *Container, log *zap.Logger) {
	addr := fmt.Sprintf(":%d", container.Config.App.Port)

	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	if container.Worker.IsRunning() {
		container.Worker.Stop()
	}
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
