package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
)

func NewRouter(deps Deps, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if cfg.API.CORSOrigin == "" || cfg.API.CORSOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.API.CORSOrigin}
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Owner"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewHandler(deps, logger)
	basePath := cfg.API.BasePath
	if basePath == "" {
		basePath = "/api/v0"
	}
	api := r.Group(basePath, OwnerMiddleware(cfg.API.JWTSecret, logger))
	{
		// Appointments
		api.GET("/appointments", h.ListAppointments)
		api.POST("/appointments", h.CreateAppointment)
		api.PUT("/appointments/:id", h.UpdateAppointment)
		api.DELETE("/appointments/:id", h.DeleteAppointment)

		// Reconciled calendar
		api.GET("/calendar", h.GetCalendar)

		// Reminders
		api.GET("/reminder-settings", h.GetReminderSettings)
		api.PUT("/reminder-settings", h.PutReminderSettings)
		api.GET("/scheduled-reminders", h.ListScheduledReminders)

		// Staff
		api.GET("/employees", h.ListEmployees)
		api.POST("/employees", h.CreateEmployee)
		api.PUT("/employees/:id/active", h.SetEmployeeActive)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.GET("/ws", h.ServeWS)
	}
	return r
}
