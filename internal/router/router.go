package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/config"
	"github.com/consultlink/api/internal/handler"
	"github.com/consultlink/api/internal/middleware"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	SubjectHandler      *handler.SubjectHandler
	AvailabilityHandler *handler.AvailabilityHandler
	ConsultationHandler *handler.ConsultationHandler
	MessageHandler      *handler.MessageHandler
	NotificationHandler *handler.NotificationHandler
	ChatHandler         *handler.ChatHandler
	AdminUserHandler    *handler.AdminUserHandler
	JWTMiddleware       fiber.Handler
	LoginRateLimiter    fiber.Handler
	DB                  *gorm.DB
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	requireStudent := middleware.RequireRole(string(models.RoleStudent))
	requireTeacher := middleware.RequireRole(string(models.RoleTeacher))
	requireAdmin := middleware.RequireRole(string(models.RoleAdmin))

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		if deps.LoginRateLimiter != nil {
			auth.Use("/login", deps.LoginRateLimiter)
		}
		deps.AuthHandler.RegisterPublic(auth)
		deps.AuthHandler.RegisterProtected(auth.Group("/me", jwtMiddleware))
	}

	if deps.SubjectHandler != nil {
		subjects := api.Group("/subjects", jwtMiddleware)
		deps.SubjectHandler.Register(subjects)
		deps.SubjectHandler.RegisterAdmin(subjects, requireAdmin)
	}

	if deps.AvailabilityHandler != nil {
		availability := api.Group("/availability", jwtMiddleware)
		deps.AvailabilityHandler.Register(availability)
		deps.AvailabilityHandler.RegisterTeacher(availability.Group("/windows", requireTeacher))
	}

	if deps.ConsultationHandler != nil {
		consultations := api.Group("/consultations", jwtMiddleware)
		deps.ConsultationHandler.RegisterStudent(consultations, requireStudent)
		deps.ConsultationHandler.RegisterTeacher(consultations, requireTeacher)
		deps.ConsultationHandler.Register(consultations)
	}

	if deps.MessageHandler != nil {
		messages := api.Group("/messages", jwtMiddleware)
		deps.MessageHandler.Register(messages)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware)
		deps.ChatHandler.Register(chat)
	}

	if deps.AdminUserHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, requireAdmin)
		deps.AdminUserHandler.Register(admin)
	}
}
