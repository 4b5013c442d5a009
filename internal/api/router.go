package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/api/handler"
	"github.com/medclinic/booking-portal/internal/api/middleware"
	"github.com/medclinic/booking-portal/internal/core/domain"
)

// RouterDeps carries what the portal routes need. A nil Registerer or
// Gatherer falls back to the Prometheus default registry.
type RouterDeps struct {
	Sessions     middleware.SessionSource
	CookieSecure bool
	Checks       map[string]handler.Check
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
	Log          zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	reg, gat := deps.Registerer, deps.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gat == nil {
		gat = prometheus.DefaultGatherer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "portal",
		Subsystem:  "http",
		Registerer: reg,
	}))

	// --- Health and metrics (no browser session) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gat}))

	// --- Browser routes ---
	b := e.Group("", middleware.Browser(deps.Sessions, deps.CookieSecure))

	authHandler := handler.NewAuthHandler(deps.Log)
	b.GET("/login", authHandler.LoginPage)
	b.POST("/login", authHandler.Login)
	b.POST("/register", authHandler.Register)
	b.POST("/logout", authHandler.Logout)
	b.GET("/api/session", authHandler.Session)

	views := handler.NewViewHandler()
	anyRole := middleware.Protected()
	booking := middleware.Protected(domain.RolePatient, domain.RoleDoctor, domain.RoleAdmin)

	b.GET("/", views.Home, anyRole)
	b.GET("/clinics", views.List(domain.ResourceClinics), anyRole)
	b.GET("/doctors", views.List(domain.ResourceDoctors), anyRole)
	b.GET("/specializations", views.List(domain.ResourceSpecializations), anyRole)
	b.GET("/notifications", views.List(domain.ResourceNotifications), anyRole)

	b.GET("/appointments", views.List(domain.ResourceAppointments), booking)
	b.POST("/appointments", views.CreateAppointment, booking)
	b.POST("/appointments/:id/cancel", views.CancelAppointment, booking)

	b.GET("/medical-records", views.List(domain.ResourceMedicalRecords), middleware.Protected(domain.RolePatient, domain.RoleDoctor))
	b.GET("/payments", views.List(domain.ResourcePayments), middleware.Protected(domain.RolePatient, domain.RoleAdmin))
	b.GET("/doctor/schedules", views.Schedules, middleware.Protected(domain.RoleDoctor))
	b.GET("/admin/users", views.List(domain.ResourceUsers), middleware.Protected(domain.RoleAdmin))

	return e
}
