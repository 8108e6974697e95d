package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/config"
	"github.com/consultlink/api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "ok",
		}

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Context()) != nil {
				payload.Status = "degraded"
				payload.Database = "unreachable"
				return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
