package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config carries the dependencies for the shared request pipeline.
type Config struct {
	Logger *zerolog.Logger
}

// Register wires the request pipeline every ConsultLink route passes through:
// panic recovery, correlation IDs, metrics and structured access logs, then
// CORS. Order matters; recovery must run outermost so a panicking handler
// still produces a logged 500.
func Register(app *fiber.App, cfg Config) {
	accessLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		accessLogger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(accessLogger))
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
}
